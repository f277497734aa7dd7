package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-auth/internal/config"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

func newIssuer(t *testing.T) *utils.TokenIssuer {
	t.Helper()
	issuer, err := utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  "access-secret-0123456789abcdef0123456789",
		RefreshSecret: "refresh-secret-0123456789abcdef012345678",
	})
	require.NoError(t, err)
	return issuer
}

func protected(t *testing.T, issuer *utils.TokenIssuer) *echo.Echo {
	t.Helper()
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := UserIDFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "email": c.Get(ContextEmail)})
	}, JWTAuth(issuer))
	return e
}

func TestJWTAuth(t *testing.T) {
	issuer := newIssuer(t)
	pair, err := issuer.IssuePair(42, "a@example.com")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"refresh token", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"access token", "Bearer " + pair.AccessToken, http.StatusOK},
	}
	e := protected(t, issuer)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.JSONEq(t, `{"id":42,"email":"a@example.com"}`, rec.Body.String())
			}
		})
	}
}

func TestJWTAuthExpiredToken(t *testing.T) {
	issuer := newIssuer(t)
	past := issuer.WithClock(func() time.Time { return time.Now().Add(-time.Hour) })
	pair, err := past.IssuePair(7, "old@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	protected(t, issuer).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func limitedServer(t *testing.T, cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.POST("/v1/auth/login", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, NewTokenBucket(cfg, rdb, logger))
	return e
}

func post(e *echo.Echo) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:test",
	}
	e := limitedServer(t, cfg, rdb)

	for i := 0; i < 3; i++ {
		rec := post(e)
		require.Equal(t, http.StatusNoContent, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := post(e)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := limitedServer(t, cfg, rdb)
	assert.Equal(t, http.StatusNoContent, post(e).Code)
	assert.Equal(t, http.StatusNoContent, post(e).Code)
}

func TestTokenBucketDisabled(t *testing.T) {
	e := limitedServer(t, config.RateLimitConfig{Enabled: false}, nil)
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusNoContent, post(e).Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/auth/login")

	assert.Equal(t, "rl:ip:198.51.100.1", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}, c))
	assert.Equal(t, "rl:ip:198.51.100.1:route:POST /v1/auth/login", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c))

	c.Set(ContextUserID, uint64(9))
	assert.Equal(t, "rl:user:9", buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c))
}
