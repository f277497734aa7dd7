package main

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/service"
)

// NewGrantSuperAdminCmd creates the grant-super-admin subcommand.  The
// API can only grant ADMIN, so the first SUPER_ADMIN is made here.
func NewGrantSuperAdminCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "grant-super-admin",
		Short: "Give an existing account the SUPER_ADMIN role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, users, _, err := openStores(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}
			id, err := grantSuperAdmin(cmd.Context(), users, email)
			if err != nil {
				return err
			}
			logger.Info("super admin granted", "user_id", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func grantSuperAdmin(ctx context.Context, users service.UserRepository, email string) (uint64, error) {
	email, err := service.NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	u, err := users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, oops.Code("USER_NOT_FOUND").Errorf("no account for %s", email)
	}
	if err != nil {
		return 0, oops.Code("GRANT_FAILED").With("operation", "FindByEmail").Wrap(err)
	}
	if err := users.UpdateRole(ctx, u.ID, model.RoleSuperAdmin); err != nil {
		return 0, oops.Code("GRANT_FAILED").With("operation", "UpdateRole").Wrap(err)
	}
	return u.ID, nil
}
