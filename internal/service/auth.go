package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/samber/oops"

	"github.com/iliyamo/marketplace-auth/internal/metrics"
	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// AuthResult is returned by login and refresh.
type AuthResult struct {
	User   model.Identity  `json:"user"`
	Tokens utils.TokenPair `json:"tokens"`
}

// AuthService is the entry point for credential and session operations.
type AuthService struct {
	users    UserRepository
	hasher   utils.PasswordHasher
	tokens   *utils.TokenIssuer
	sessions *SessionStore
	resets   *ResetFlow
	policy   *Policy
	logger   *slog.Logger

	// decoy is verified against when a login email is unknown, so both
	// failure paths pay for one hash comparison.
	decoy string
}

func NewAuthService(users UserRepository, hasher utils.PasswordHasher, tokens *utils.TokenIssuer,
	sessions *SessionStore, resets *ResetFlow, policy *Policy, logger *slog.Logger) (*AuthService, error) {
	switch {
	case users == nil:
		return nil, errors.New("user repository is required")
	case hasher == nil:
		return nil, errors.New("password hasher is required")
	case tokens == nil:
		return nil, errors.New("token issuer is required")
	case sessions == nil || resets == nil || policy == nil:
		return nil, errors.New("session store, reset flow and policy are required")
	case logger == nil:
		return nil, errors.New("logger is required")
	}
	decoy, err := hasher.Hash("decoy-password-for-unknown-accounts")
	if err != nil {
		return nil, fmt.Errorf("hash decoy: %w", err)
	}
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		sessions: sessions,
		resets:   resets,
		policy:   policy,
		logger:   logger,
		decoy:    decoy,
	}, nil
}

// Register creates a USER account.  Only the password hash is stored.
func (s *AuthService) Register(ctx context.Context, email, password string) (model.Identity, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return model.Identity{}, err
	}
	if err := validatePassword(password); err != nil {
		return model.Identity{}, err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return model.Identity{}, oops.Code("REGISTER_FAILED").With("operation", "Hash").Wrap(err)
	}

	u := &model.User{Email: email, PasswordHash: digest, Role: model.RoleUser}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			metrics.Registrations.WithLabelValues(metrics.ResultFailure).Inc()
			return model.Identity{}, ErrEmailAlreadyExists
		}
		metrics.Registrations.WithLabelValues(metrics.ResultError).Inc()
		return model.Identity{}, oops.Code("REGISTER_FAILED").With("operation", "Create").Wrap(err)
	}

	metrics.Registrations.WithLabelValues(metrics.ResultSuccess).Inc()
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u.Identity(), nil
}

// Login checks the credentials and binds a fresh token pair.  Unknown
// email and wrong password both yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (AuthResult, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		return AuthResult{}, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		_ = s.hasher.Verify(password, s.decoy)
		metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return AuthResult{}, oops.Code("LOGIN_FAILED").With("operation", "FindByEmail").Wrap(err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		return AuthResult{}, ErrInvalidCredentials
	}

	res, err := s.issue(ctx, u)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return AuthResult{}, err
	}
	metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
	s.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return res, nil
}

// Refresh exchanges a bound refresh token for a new pair and rotates the
// binding before returning, so the presented token is dead once this
// succeeds.  Signature, expiry and binding failures are all
// ErrInvalidRefreshToken; storage failures are returned wrapped so callers
// can retry them.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
		return AuthResult{}, ErrInvalidRefreshToken
	}

	u, ok, err := s.sessions.lookup(ctx, claims.UserID, refreshToken)
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.ResultError).Inc()
		return AuthResult{}, err
	}
	if !ok {
		metrics.Refreshes.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.WarnContext(ctx, "refresh token not bound", "user_id", claims.UserID)
		return AuthResult{}, ErrInvalidRefreshToken
	}

	res, err := s.issue(ctx, u)
	if err != nil {
		metrics.Refreshes.WithLabelValues(metrics.ResultError).Inc()
		return AuthResult{}, err
	}
	metrics.Refreshes.WithLabelValues(metrics.ResultSuccess).Inc()
	return res, nil
}

// Logout drops the user's refresh binding.
func (s *AuthService) Logout(ctx context.Context, userID uint64) error {
	if err := s.sessions.Revoke(ctx, userID); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	return nil
}

// Me returns the identity behind an access token.
func (s *AuthService) Me(ctx context.Context, userID uint64) (model.Identity, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, ErrUserNotFound
	}
	if err != nil {
		return model.Identity{}, oops.Code("ME_FAILED").With("user_id", userID).Wrap(err)
	}
	return u.Identity(), nil
}

// RequestPasswordReset never reveals whether email belongs to an account;
// malformed addresses are treated like unknown ones.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil
	}
	return s.resets.RequestReset(ctx, email)
}

// ResetPassword consumes a reset token and sets newPassword.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.resets.ConsumeReset(ctx, token, newPassword)
}

// PromoteToAdmin grants ADMIN to targetID when requesterID is a SUPER_ADMIN.
func (s *AuthService) PromoteToAdmin(ctx context.Context, requesterID, targetID uint64) (model.Identity, error) {
	target, err := s.policy.Promote(ctx, requesterID, targetID)
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrTargetNotFound):
		metrics.Promotions.WithLabelValues(metrics.ResultFailure).Inc()
		s.logger.WarnContext(ctx, "promotion refused", "requester_id", requesterID, "target_id", targetID, "reason", err.Error())
		return model.Identity{}, err
	case err != nil:
		metrics.Promotions.WithLabelValues(metrics.ResultError).Inc()
		return model.Identity{}, err
	}
	metrics.Promotions.WithLabelValues(metrics.ResultSuccess).Inc()
	s.logger.InfoContext(ctx, "user promoted", "requester_id", requesterID, "target_id", targetID, "role", target.Role)
	return target.Identity(), nil
}

// issue mints a pair and rotates the binding before handing it out.
func (s *AuthService) issue(ctx context.Context, u *model.User) (AuthResult, error) {
	pair, err := s.tokens.IssuePair(u.ID, u.Email)
	if err != nil {
		return AuthResult{}, oops.Code("TOKEN_ISSUE_FAILED").With("user_id", u.ID).Wrap(err)
	}
	if err := s.sessions.Rotate(ctx, u.ID, pair.RefreshToken); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: u.Identity(), Tokens: pair}, nil
}

// NormalizeEmail trims and lowercases email and checks it is a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", ErrInvalidInput)
	}
	return email, nil
}

func validatePassword(p string) error {
	if p == "" {
		return fmt.Errorf("%w: password required", ErrInvalidInput)
	}
	if len(p) > utils.MaxPasswordBytes {
		return fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, utils.MaxPasswordBytes)
	}
	return nil
}
