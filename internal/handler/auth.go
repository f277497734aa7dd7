package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-auth/internal/logging"
	"github.com/iliyamo/marketplace-auth/internal/middleware"
	"github.com/iliyamo/marketplace-auth/internal/service"
)

// AuthHandler exposes the auth service over HTTP.
type AuthHandler struct {
	Auth   *service.AuthService
	Logger *slog.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Logger: logger}
}

// ----- DTOs -----

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// forgotAccepted is the reply to every well-formed forgot-password request.
const forgotAccepted = "if the address belongs to an account, a reset link has been sent"

// Register: POST /v1/auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	id, err := h.Auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"user": id})
}

// Login: POST /v1/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Refresh: POST /v1/auth/refresh.  The presented token stops working once
// this returns 200.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Auth.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ForgotPassword: POST /v1/auth/forgot-password.  Always 202 for a
// well-formed body so the response says nothing about the address.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Auth.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": forgotAccepted})
}

// ResetPassword: POST /v1/auth/reset-password
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Auth.ResetPassword(c.Request().Context(), req.Token, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Logout: POST /v1/auth/logout (bearer)
func (h *AuthHandler) Logout(c echo.Context) error {
	uid, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Auth.Logout(c.Request().Context(), uid); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: GET /v1/me (bearer)
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := h.Auth.Me(c.Request().Context(), uid)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": id})
}

// Promote: POST /v1/admin/users/:id/promote (bearer)
func (h *AuthHandler) Promote(c echo.Context) error {
	uid, ok := middleware.UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	target, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || target == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	id, err := h.Auth.PromoteToAdmin(c.Request().Context(), uid, target)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": id})
}

// fail maps service errors to status codes.  Anything outside the taxonomy
// is logged and reported as a bare 500.
func (h *AuthHandler) fail(c echo.Context, err error) error {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.LogError(c.Request().Context(), h.Logger.With("path", c.Path()), "request failed", err)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrEmailAlreadyExists):
		return http.StatusConflict, "email already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrInvalidRefreshToken):
		return http.StatusUnauthorized, "invalid refresh token"
	case errors.Is(err, service.ErrInvalidOrExpiredResetToken):
		return http.StatusBadRequest, "invalid or expired reset token"
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrTargetNotFound), errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
