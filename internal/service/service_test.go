package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/marketplace-auth/internal/logging"
	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// recordingMailer captures sent messages and optionally fails.
type recordingMailer struct {
	mu   sync.Mutex
	sent []model.MailMessage
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg model.MailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []model.MailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.MailMessage(nil), m.sent...)
}

var tokenInLink = regexp.MustCompile(`token=([0-9a-f]{64})`)

func resetTokenFrom(t *testing.T, msg model.MailMessage) string {
	t.Helper()
	m := tokenInLink.FindStringSubmatch(msg.Body)
	require.Len(t, m, 2, "reset link not found in %q", msg.Body)
	return m[1]
}

type fixture struct {
	store  *repository.MemoryStore
	mailer *recordingMailer
	tokens *utils.TokenIssuer
	flow   *ResetFlow
	auth   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, repository.NewMemoryStore())
}

func newFixtureWith(t *testing.T, users UserRepository) *fixture {
	t.Helper()
	var store *repository.MemoryStore
	switch u := users.(type) {
	case *repository.MemoryStore:
		store = u
	case *flakyUsers:
		store = u.MemoryStore
	default:
		t.Fatalf("unsupported user repository %T", users)
	}
	tokens, err := utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  "access-secret-0123456789abcdef0123456789",
		RefreshSecret: "refresh-secret-0123456789abcdef012345678",
	})
	require.NoError(t, err)

	hasher := utils.NewBcryptHasher(bcrypt.MinCost)
	mailer := &recordingMailer{}
	logger := logging.Discard()
	flow := NewResetFlow(users, store.Resets(), hasher, mailer, ResetConfig{
		TTL:     15 * time.Minute,
		URLBase: "https://shop.example/reset",
	}, logger)
	auth, err := NewAuthService(users, hasher, tokens, NewSessionStore(users, hasher), flow, NewPolicy(users), logger)
	require.NoError(t, err)
	return &fixture{store: store, mailer: mailer, tokens: tokens, flow: flow, auth: auth}
}

// register creates an account and returns its id.
func (f *fixture) register(t *testing.T, email, password string) uint64 {
	t.Helper()
	id, err := f.auth.Register(context.Background(), email, password)
	require.NoError(t, err)
	return id.ID
}

// setRole bypasses the policy to seed privileged accounts.
func (f *fixture) setRole(t *testing.T, id uint64, role model.Role) {
	t.Helper()
	require.NoError(t, f.store.UpdateRole(context.Background(), id, role))
}

// flakyUsers fails FindByID with a transient error when armed.
type flakyUsers struct {
	*repository.MemoryStore
	fail bool
}

var errTransient = errors.New("connection reset by peer")

func (u *flakyUsers) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	if u.fail {
		return nil, errTransient
	}
	return u.MemoryStore.FindByID(ctx, id)
}
