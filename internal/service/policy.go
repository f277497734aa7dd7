package service

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
)

// CanPromote reports whether a requester with role may grant ADMIN.
func CanPromote(role model.Role) bool {
	return role == model.RoleSuperAdmin
}

// Policy makes role decisions.  Promote is the only path in the service
// that changes a role, and it only ever moves USER up to ADMIN.
type Policy struct {
	users UserRepository
}

func NewPolicy(users UserRepository) *Policy {
	return &Policy{users: users}
}

// Promote grants ADMIN to targetID on behalf of requesterID.  Targets that
// already hold ADMIN or SUPER_ADMIN are returned unchanged.
func (p *Policy) Promote(ctx context.Context, requesterID, targetID uint64) (*model.User, error) {
	requester, err := p.users.FindByID(ctx, requesterID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, oops.Code("PROMOTE_FAILED").
			With("operation", "FindByID requester").
			With("requester_id", requesterID).
			Wrap(err)
	}
	if !CanPromote(requester.Role) {
		return nil, ErrUnauthorized
	}

	target, err := p.users.FindByID(ctx, targetID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrTargetNotFound
	}
	if err != nil {
		return nil, oops.Code("PROMOTE_FAILED").
			With("operation", "FindByID target").
			With("target_id", targetID).
			Wrap(err)
	}
	if target.Role != model.RoleUser {
		return target, nil
	}

	if err := p.users.UpdateRole(ctx, targetID, model.RoleAdmin); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTargetNotFound
		}
		return nil, oops.Code("PROMOTE_FAILED").
			With("operation", "UpdateRole").
			With("target_id", targetID).
			Wrap(err)
	}
	target.Role = model.RoleAdmin
	return target, nil
}
