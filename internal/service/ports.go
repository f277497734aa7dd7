package service

import (
	"context"
	"time"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// UserRepository is the persistence the core needs for users.  Lookups
// return repository.ErrNotFound on a miss; Create returns
// repository.ErrEmailExists on a duplicate email.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	// UpdateRefreshHash atomically replaces the stored refresh binding; nil clears it.
	UpdateRefreshHash(ctx context.Context, id uint64, hash *string) error
	UpdateRole(ctx context.Context, id uint64, role model.Role) error
}

// ResetRepository persists pending password reset requests, keyed by the
// SHA-256 digest of their token.
type ResetRepository interface {
	Create(ctx context.Context, req *model.PasswordResetRequest) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetRequest, error)
	// Consume removes the request if it is still valid at now and stores
	// passwordHash on its owner, all or nothing.  A miss, an expired
	// request or a lost race yields repository.ErrNotFound.
	Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Mailer hands a message to the mail transport.
type Mailer interface {
	Send(ctx context.Context, msg model.MailMessage) error
}
