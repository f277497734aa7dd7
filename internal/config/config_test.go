package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-0123456789abcdef0123456789"
	refreshSecret = "refresh-secret-0123456789abcdef012345678"
)

func setMemoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_ACCESS_SECRET", accessSecret)
	t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setMemoryEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 15*time.Minute, cfg.ResetTTL)
	assert.Equal(t, "mail.outbound", cfg.MailQueue)
	assert.Equal(t, "@every 10m", cfg.ResetPurgeSchedule)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, 2525, cfg.SMTPPort)
}

func TestLoadFromEnvRejectsBadSecrets(t *testing.T) {
	t.Run("missing", func(t *testing.T) {
		t.Setenv("STORE", "memory")
		t.Setenv("JWT_ACCESS_SECRET", "")
		t.Setenv("JWT_REFRESH_SECRET", refreshSecret)
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET")
	})
	t.Run("identical", func(t *testing.T) {
		t.Setenv("STORE", "memory")
		t.Setenv("JWT_ACCESS_SECRET", accessSecret)
		t.Setenv("JWT_REFRESH_SECRET", accessSecret)
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})
}

func TestLoadFromEnvMySQLRequiresDatabase(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORE", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	for _, key := range []string{"DB_USER", "DB_HOST", "DB_NAME"} {
		assert.True(t, strings.Contains(err.Error(), key), key)
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "auth", DBPass: "pw", DBHost: "db", DBPort: "3306", DBName: "market"}
	assert.Equal(t, "auth:pw@tcp(db:3306)/market?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true", cfg.DSN())

	cfg.DBPass = ""
	assert.True(t, strings.HasPrefix(cfg.DSN(), "auth@tcp("))
}

func TestLoadRateLimitConfigNormalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 10*time.Second, c.TTL)
}
