package repository

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// MemoryStore keeps users and reset requests in process memory.  It backs
// STORE=memory deployments and the service tests; every method holds the
// store lock, so Consume is atomic in the same way the MySQL transaction is.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  uint64
	users   map[uint64]*model.User
	byEmail map[string]uint64
	resets  map[string]*model.PasswordResetRequest // keyed by token hash
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uint64]*model.User),
		byEmail: make(map[string]uint64),
		resets:  make(map[string]*model.PasswordResetRequest),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, u *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[u.Email]; ok {
		return ErrEmailExists
	}
	s.nextID++
	now := s.now().UTC()
	u.ID = s.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = cloneUser(u)
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) UpdateRefreshHash(ctx context.Context, id uint64, hash *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.RefreshTokenHash = cloneString(hash)
	u.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) UpdateRole(ctx context.Context, id uint64, role model.Role) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = s.now().UTC()
	return nil
}

// MemoryResets adapts the store to the reset repository contract, whose
// Create signature differs from the user one.
type MemoryResets struct{ *MemoryStore }

// Resets returns the reset-request view of the store.
func (s *MemoryStore) Resets() MemoryResets { return MemoryResets{s} }

func (r MemoryResets) Create(ctx context.Context, req *model.PasswordResetRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *req
	r.resets[req.TokenHash] = &cp
	return nil
}

func (r MemoryResets) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.resets[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r MemoryResets) Consume(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.resets[tokenHash]
	if !ok || req.ExpiredAt(now) {
		return 0, ErrNotFound
	}
	u, ok := r.users[req.UserID]
	if !ok {
		return 0, ErrNotFound
	}
	delete(r.resets, tokenHash)
	u.PasswordHash = passwordHash
	u.RefreshTokenHash = nil
	u.UpdatedAt = now.UTC()
	return u.ID, nil
}

func (r MemoryResets) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, req := range r.resets {
		if req.ExpiredAt(now) {
			delete(r.resets, k)
			n++
		}
	}
	return n, nil
}

// PendingResets reports how many reset requests are stored.
func (s *MemoryStore) PendingResets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.resets)
}

func cloneUser(u *model.User) *model.User {
	cp := *u
	cp.RefreshTokenHash = cloneString(u.RefreshTokenHash)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
