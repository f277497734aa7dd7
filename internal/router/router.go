package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-auth/internal/handler"
	"github.com/iliyamo/marketplace-auth/internal/middleware"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", handler.Metrics())
}

// RegisterAuth registers the auth API.  Credential endpoints under
// /v1/auth are rate limited by limit; everything else requires a bearer
// access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, tokens *utils.TokenIssuer, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limit)
	g.POST("/login", a.Login, limit)
	g.POST("/refresh", a.Refresh, limit)
	g.POST("/forgot-password", a.ForgotPassword, limit)
	g.POST("/reset-password", a.ResetPassword, limit)
	g.POST("/logout", a.Logout, middleware.JWTAuth(tokens))

	auth := e.Group("/v1", middleware.JWTAuth(tokens))
	auth.GET("/me", a.Me)
	auth.POST("/admin/users/:id/promote", a.Promote)
}
