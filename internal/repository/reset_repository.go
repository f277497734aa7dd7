package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// ResetRepo persists password reset requests in MySQL.
type ResetRepo struct{ DB *sql.DB }

func NewResetRepo(db *sql.DB) *ResetRepo { return &ResetRepo{DB: db} }

// Create inserts a pending reset request.
func (r *ResetRepo) Create(ctx context.Context, req *model.PasswordResetRequest) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO password_resets (id, user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?,?)",
		req.ID, req.UserID, req.TokenHash, req.ExpiresAt, req.CreatedAt)
	return err
}

// FindByTokenHash returns the request whose token digest matches.
func (r *ResetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetRequest, error) {
	var req model.PasswordResetRequest
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,token_hash,expires_at,created_at FROM password_resets WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&req.ID, &req.UserID, &req.TokenHash, &req.ExpiresAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// Consume deletes the unexpired request for tokenHash and stores
// passwordHash on its owner in one transaction.  The row lock taken by
// SELECT ... FOR UPDATE serializes concurrent consumers: the loser finds no
// row and gets ErrNotFound.  Existing refresh bindings are cleared with the
// password.
func (r *ResetRepo) Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var userID uint64
	err = tx.QueryRowContext(ctx,
		"SELECT user_id FROM password_resets WHERE token_hash=? AND expires_at >= ? LIMIT 1 FOR UPDATE",
		tokenHash, now).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM password_resets WHERE token_hash=?", tokenHash)
	if err != nil {
		return 0, err
	}
	if err := expectOneRow(res); err != nil {
		return 0, err
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE users SET password_hash=?, refresh_token_hash=NULL, updated_at=? WHERE id=?",
		passwordHash, now, userID)
	if err != nil {
		return 0, err
	}
	if err := expectOneRow(res); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

// DeleteExpired removes requests whose expiry is before now and returns
// how many were removed.
func (r *ResetRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM password_resets WHERE expires_at < ?", now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
