package utils

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretBytes is the shortest signing secret accepted for HS256.
const MinSecretBytes = 32

var (
	// ErrInvalidToken is the single failure returned for any token that
	// does not verify: bad signature, expiry, wrong algorithm or a
	// malformed payload all look the same to callers.
	ErrInvalidToken = errors.New("invalid token")

	ErrMissingSecret      = errors.New("signing secret is required")
	ErrShortSecret        = errors.New("signing secret must be at least 32 bytes")
	ErrSecretsNotDistinct = errors.New("access and refresh secrets must differ")
)

// Claims are carried by both access and refresh tokens.  UserID duplicates
// the subject as a number so consumers need not parse sub.
type Claims struct {
	UserID uint64 `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenPair is an access token and a refresh token minted together.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenConfig configures a TokenIssuer.  The two secrets are independent so
// holding one kind of token never allows forging the other.
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// TokenIssuer mints and verifies HS256 JWTs.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer.  Secrets are copied
// once and never mutated afterwards.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, ErrMissingSecret
	}
	if len(cfg.AccessSecret) < MinSecretBytes || len(cfg.RefreshSecret) < MinSecretBytes {
		return nil, ErrShortSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrSecretsNotDistinct
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           time.Now,
	}, nil
}

// WithClock returns a copy of the issuer that reads time from now.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *i
	cp.now = now
	return &cp
}

// AccessTTL is the lifetime of access tokens.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair signs a fresh access token and refresh token for the user.
func (i *TokenIssuer) IssuePair(userID uint64, email string) (TokenPair, error) {
	now := i.now().UTC().Truncate(time.Second)
	access, accessExp, err := i.sign(userID, email, now, i.accessTTL, i.accessSecret)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(userID, email, now, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// VerifyAccess verifies a token against the access secret.
func (i *TokenIssuer) VerifyAccess(token string) (*Claims, error) {
	return i.Verify(token, i.accessSecret)
}

// VerifyRefresh verifies a token against the refresh secret.
func (i *TokenIssuer) VerifyRefresh(token string) (*Claims, error) {
	return i.Verify(token, i.refreshSecret)
}

// Verify parses token with secret and returns its claims.  Every failure
// collapses to ErrInvalidToken.
func (i *TokenIssuer) Verify(token string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == 0 || claims.Subject != strconv.FormatUint(claims.UserID, 10) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *TokenIssuer) sign(userID uint64, email string, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
