package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/iliyamo/marketplace-auth/internal/mailer"
	"github.com/iliyamo/marketplace-auth/internal/queue"
)

// NewMailWorkerCmd creates the mail-worker subcommand.
func NewMailWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mail-worker",
		Short: "Deliver queued mail over SMTP",
		RunE:  runMailWorker,
	}
}

func runMailWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RabbitMQURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("RABBITMQ_URL is required for the mail worker")
	}

	var sender queue.Sender = mailer.LogSender{Logger: logger}
	if cfg.SMTPHost != "" {
		s, err := mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return oops.Code("CONFIG_INVALID").With("smtp_host", cfg.SMTPHost).Wrap(err)
		}
		sender = s
	} else {
		logger.Warn("SMTP_HOST not set; queued mail is logged, not sent")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &queue.Consumer{URL: cfg.RabbitMQURL, Queue: cfg.MailQueue, Sender: sender, Logger: logger}
	logger.Info("mail worker started", "queue", cfg.MailQueue)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
