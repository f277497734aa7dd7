package main

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/samber/oops"

	"github.com/iliyamo/marketplace-auth/internal/config"
	"github.com/iliyamo/marketplace-auth/internal/database"
	"github.com/iliyamo/marketplace-auth/internal/mailer"
	"github.com/iliyamo/marketplace-auth/internal/queue"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/service"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// deps are the wired components shared by the subcommands.
type deps struct {
	db     *sql.DB // nil for the memory store
	users  service.UserRepository
	resets service.ResetRepository
	tokens *utils.TokenIssuer
	flow   *service.ResetFlow
	auth   *service.AuthService
}

func (d *deps) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
}

func openStores(ctx context.Context, cfg config.Config) (*sql.DB, service.UserRepository, service.ResetRepository, error) {
	if cfg.Store == "memory" {
		store := repository.NewMemoryStore()
		return nil, store, store.Resets(), nil
	}
	db, err := database.Open(ctx, cfg.DSN())
	if err != nil {
		return nil, nil, nil, oops.Code("DB_CONNECT_FAILED").With("host", cfg.DBHost).Wrap(err)
	}
	return db, repository.NewUserRepo(db), repository.NewResetRepo(db), nil
}

// newMailer picks the transport for reset mail: the queue when RabbitMQ is
// configured, otherwise the log.
func newMailer(cfg config.Config, logger *slog.Logger) service.Mailer {
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL not set; reset mail is logged, not sent")
		return mailer.LogSender{Logger: logger}
	}
	return queue.NewPublisher(cfg.RabbitMQURL, cfg.MailQueue)
}

func buildDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*deps, error) {
	db, users, resets, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	d := &deps{db: db, users: users, resets: resets}

	d.tokens, err = utils.NewTokenIssuer(utils.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		d.Close()
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	hasher := utils.NewBcryptHasher(cfg.BcryptCost)
	d.flow = service.NewResetFlow(users, resets, hasher, newMailer(cfg, logger), service.ResetConfig{
		TTL:     cfg.ResetTTL,
		URLBase: cfg.ResetURLBase,
	}, logger)
	d.auth, err = service.NewAuthService(users, hasher, d.tokens,
		service.NewSessionStore(users, hasher), d.flow, service.NewPolicy(users), logger)
	if err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
