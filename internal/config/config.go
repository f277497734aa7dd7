package config // package config loads application configuration from environment variables

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	Store  string // "mysql" or "memory"
	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTAccessSecret  string // signs access tokens
	JWTRefreshSecret string // signs refresh tokens; must differ from the access secret
	JWTIssuer        string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetTTL         time.Duration
	BcryptCost       int

	ResetURLBase       string // page that receives ?token=
	ResetPurgeSchedule string // cron schedule for purging expired reset requests

	MailFrom    string
	RabbitMQURL string // empty disables the queue and mail is only logged
	MailQueue   string
	SMTPHost    string // empty makes the mail-worker log instead of send
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string

	LogFormat string // "json" or "text"
	LogLevel  string
}

// LoadFromEnv reads a .env file when present, then the process environment.
func LoadFromEnv() (Config, error) {
	_ = godotenv.Load() // a missing .env is fine; real env vars always win

	var errs []error
	req := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", key))
		}
		return v
	}

	cfg := Config{
		Env:                envStr("APP_ENV", "dev"),
		Port:               envStr("APP_PORT", "8080"),
		Store:              envStr("STORE", "mysql"),
		JWTAccessSecret:    req("JWT_ACCESS_SECRET"),
		JWTRefreshSecret:   req("JWT_REFRESH_SECRET"),
		JWTIssuer:          envStr("JWT_ISSUER", "marketplace-auth"),
		AccessTTL:          envDur("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:         envDur("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		ResetTTL:           envDur("RESET_TOKEN_TTL", 15*time.Minute),
		BcryptCost:         envInt("BCRYPT_COST", bcrypt.DefaultCost),
		ResetURLBase:       envStr("RESET_URL_BASE", "http://localhost:3000/reset-password"),
		ResetPurgeSchedule: envStr("RESET_PURGE_SCHEDULE", "@every 10m"),
		MailFrom:           envStr("MAIL_FROM", "no-reply@localhost"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		MailQueue:          envStr("MAIL_QUEUE", "mail.outbound"),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           envInt("SMTP_PORT", 587),
		SMTPUser:           os.Getenv("SMTP_USERNAME"),
		SMTPPass:           os.Getenv("SMTP_PASSWORD"),
		LogFormat:          envStr("LOG_FORMAT", "json"),
		LogLevel:           envStr("LOG_LEVEL", "info"),
	}

	switch cfg.Store {
	case "mysql":
		cfg.DBUser = req("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS")
		cfg.DBHost = req("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = req("DB_NAME")
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE must be mysql or memory, got %q", cfg.Store))
	}

	if cfg.JWTAccessSecret != "" && cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return cfg, errors.Join(errs...)
}

// Load is LoadFromEnv for process startup: any configuration error is fatal.
func Load() Config {
	cfg, err := LoadFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// DSN is the go-sql-driver/mysql data source name.  clientFoundRows makes
// UPDATE report matched rows, so writing an unchanged value still counts.
func (c Config) DSN() string {
	auth := c.DBUser
	if c.DBPass != "" {
		auth = c.DBUser + ":" + c.DBPass
	}
	return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
		auth, c.DBHost, c.DBPort, c.DBName)
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
