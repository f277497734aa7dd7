package service

import "errors"

// Expected outcomes of the credential operations.  Callers branch on these
// with errors.Is; anything else returned by the service is an
// infrastructure failure wrapped with an oops code.
var (
	ErrEmailAlreadyExists         = errors.New("email already exists")
	ErrInvalidCredentials         = errors.New("invalid credentials")
	ErrInvalidRefreshToken        = errors.New("invalid refresh token")
	ErrInvalidOrExpiredResetToken = errors.New("invalid or expired reset token")
	ErrUnauthorized               = errors.New("unauthorized")
	ErrTargetNotFound             = errors.New("target user not found")
	ErrUserNotFound               = errors.New("user not found")
	ErrInvalidInput               = errors.New("invalid input")
)
