package service

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// SessionStore binds each user to their most recently issued refresh
// token.  Only a bcrypt hash of the token's SHA-256 digest is stored (the
// digest keeps the input under bcrypt's 72-byte limit), so overwriting it on
// every rotation invalidates all earlier refresh tokens for that user.
//
// Concurrent rotations for the same user race; the last write wins and
// earlier racers hold stale tokens.
type SessionStore struct {
	users  UserRepository
	hasher utils.PasswordHasher
}

func NewSessionStore(users UserRepository, hasher utils.PasswordHasher) *SessionStore {
	return &SessionStore{users: users, hasher: hasher}
}

// Rotate replaces the user's binding with refreshToken.
func (s *SessionStore) Rotate(ctx context.Context, userID uint64, refreshToken string) error {
	digest, err := s.hasher.Hash(utils.SHA256Hex(refreshToken))
	if err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").With("operation", "Hash").Wrap(err)
	}
	if err := s.users.UpdateRefreshHash(ctx, userID, &digest); err != nil {
		return oops.Code("SESSION_ROTATE_FAILED").
			With("operation", "UpdateRefreshHash").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// VerifyBinding reports whether candidate is the user's current refresh
// token.  It is false when the user is unknown or has no binding.
func (s *SessionStore) VerifyBinding(ctx context.Context, userID uint64, candidate string) (bool, error) {
	_, ok, err := s.lookup(ctx, userID, candidate)
	return ok, err
}

// Revoke clears the user's binding so no refresh token is accepted until
// the next login.
func (s *SessionStore) Revoke(ctx context.Context, userID uint64) error {
	if err := s.users.UpdateRefreshHash(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_REVOKE_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

func (s *SessionStore) lookup(ctx context.Context, userID uint64, candidate string) (*model.User, bool, error) {
	u, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("SESSION_LOOKUP_FAILED").
			With("operation", "FindByID").
			With("user_id", userID).
			Wrap(err)
	}
	if u.RefreshTokenHash == nil || candidate == "" {
		return u, false, nil
	}
	return u, s.hasher.Verify(utils.SHA256Hex(candidate), *u.RefreshTokenHash), nil
}
