package model

import "time"

// PasswordResetRequest models a row in the `password_resets` table.  The
// plain token is only ever sent to the user; the table keeps its SHA-256
// hex digest.  A request is consumed (deleted) at most once.
type PasswordResetRequest struct {
	ID        string    // password_resets.id (uuid)
	UserID    uint64    // password_resets.user_id
	TokenHash string    // password_resets.token_hash
	ExpiresAt time.Time // password_resets.expires_at
	CreatedAt time.Time // password_resets.created_at
}

// ExpiredAt reports whether the request is no longer usable at now.
func (r *PasswordResetRequest) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
