package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/service"
)

func TestGrantSuperAdmin(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	u := &model.User{Email: "root@example.com", PasswordHash: "x", Role: model.RoleUser}
	require.NoError(t, store.Create(ctx, u))

	id, err := grantSuperAdmin(ctx, store, " Root@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	got, err := store.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperAdmin, got.Role)
}

func TestGrantSuperAdminUnknownEmail(t *testing.T) {
	_, err := grantSuperAdmin(context.Background(), repository.NewMemoryStore(), "nobody@example.com")
	require.Error(t, err)

	_, err = grantSuperAdmin(context.Background(), repository.NewMemoryStore(), "not-an-email")
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "mail-worker", "migrate", "grant-super-admin"})
}
