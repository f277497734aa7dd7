package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/iliyamo/marketplace-auth/internal/logging"
	"github.com/iliyamo/marketplace-auth/internal/metrics"
	"github.com/iliyamo/marketplace-auth/internal/model"
	"github.com/iliyamo/marketplace-auth/internal/repository"
	"github.com/iliyamo/marketplace-auth/internal/utils"
)

// ResetTokenBytes is the amount of randomness in a reset token (64 hex chars).
const ResetTokenBytes = 32

// ResetConfig controls reset token lifetime and the mail sent for it.
type ResetConfig struct {
	TTL             time.Duration // validity of a reset token
	URLBase         string        // page that accepts ?token=
	DispatchTimeout time.Duration // deadline for handing the mail to the transport
}

// ResetFlow issues single-use password reset tokens and consumes them.
type ResetFlow struct {
	users    UserRepository
	resets   ResetRepository
	hasher   utils.PasswordHasher
	mailer   Mailer
	cfg      ResetConfig
	logger   *slog.Logger
	now      func() time.Time
	inflight sync.WaitGroup
}

func NewResetFlow(users UserRepository, resets ResetRepository, hasher utils.PasswordHasher, mailer Mailer, cfg ResetConfig, logger *slog.Logger) *ResetFlow {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ResetFlow{
		users:  users,
		resets: resets,
		hasher: hasher,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// RequestReset starts a reset for email.  Unknown addresses succeed without
// doing anything, so the caller learns nothing about which accounts exist.
// The mail is dispatched in the background; a dispatch failure is logged
// and counted but never returned, and leaves the stored request valid.
func (f *ResetFlow) RequestReset(ctx context.Context, email string) error {
	u, err := f.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordResets.WithLabelValues("request", "ignored").Inc()
		return nil
	}
	if err != nil {
		metrics.PasswordResets.WithLabelValues("request", metrics.ResultError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "FindByEmail").Wrap(err)
	}

	token, err := utils.RandomHex(ResetTokenBytes)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "RandomHex").Wrap(err)
	}
	now := f.now().UTC()
	req := &model.PasswordResetRequest{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: utils.SHA256Hex(token),
		ExpiresAt: now.Add(f.cfg.TTL),
		CreatedAt: now,
	}
	if err := f.resets.Create(ctx, req); err != nil {
		metrics.PasswordResets.WithLabelValues("request", metrics.ResultError).Inc()
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "Create").
			With("user_id", u.ID).
			Wrap(err)
	}

	metrics.PasswordResets.WithLabelValues("request", metrics.ResultSuccess).Inc()
	f.dispatch(ctx, u, f.resetMessage(u.Email, token))
	return nil
}

// ConsumeReset replaces the credential of the user owning token.  The
// request is deleted in the same atomic step as the password update, so a
// token can succeed at most once even under concurrent attempts.
func (f *ResetFlow) ConsumeReset(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidOrExpiredResetToken
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	tokenHash := utils.SHA256Hex(token)
	now := f.now().UTC()
	req, err := f.resets.FindByTokenHash(ctx, tokenHash)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordResets.WithLabelValues("consume", metrics.ResultFailure).Inc()
		return ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").With("operation", "FindByTokenHash").Wrap(err)
	}
	if req.ExpiredAt(now) {
		metrics.PasswordResets.WithLabelValues("consume", metrics.ResultFailure).Inc()
		return ErrInvalidOrExpiredResetToken
	}

	digest, err := f.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_CONSUME_FAILED").With("operation", "Hash").Wrap(err)
	}

	userID, err := f.resets.Consume(ctx, tokenHash, now, digest)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.PasswordResets.WithLabelValues("consume", metrics.ResultFailure).Inc()
		return ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		metrics.PasswordResets.WithLabelValues("consume", metrics.ResultError).Inc()
		return oops.Code("RESET_CONSUME_FAILED").
			With("operation", "Consume").
			With("user_id", req.UserID).
			Wrap(err)
	}

	metrics.PasswordResets.WithLabelValues("consume", metrics.ResultSuccess).Inc()
	f.logger.InfoContext(ctx, "password reset completed", "user_id", userID)
	return nil
}

// PurgeExpired deletes requests that can no longer be consumed.
func (f *ResetFlow) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := f.resets.DeleteExpired(ctx, f.now().UTC())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").Wrap(err)
	}
	return n, nil
}

// Wait blocks until every background mail dispatch has finished.
func (f *ResetFlow) Wait() {
	f.inflight.Wait()
}

func (f *ResetFlow) resetMessage(to, token string) model.MailMessage {
	link := f.cfg.URLBase + "?token=" + url.QueryEscape(token)
	minutes := int(f.cfg.TTL / time.Minute)
	return model.MailMessage{
		To:      to,
		Subject: "Reset your password",
		Kind:    "password_reset",
		Body: fmt.Sprintf("A password reset was requested for your account.\n\n"+
			"Open the link below within %d minutes to choose a new password:\n%s\n\n"+
			"If you did not request this, you can ignore this email.\n", minutes, link),
	}
}

// dispatch sends msg on its own goroutine.  The context is detached from
// the request so the send outlives the response, bounded by DispatchTimeout.
func (f *ResetFlow) dispatch(ctx context.Context, u *model.User, msg model.MailMessage) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.DispatchTimeout)
	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		defer cancel()
		if err := f.mailer.Send(sendCtx, msg); err != nil {
			metrics.MailDispatchFailures.Inc()
			logging.LogError(sendCtx, f.logger.With("user_id", u.ID), "reset mail dispatch failed", err)
		}
	}()
}
