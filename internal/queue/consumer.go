package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// Sender delivers a mail message to its recipient.
type Sender interface {
	Send(ctx context.Context, msg model.MailMessage) error
}

// Consumer reads mail jobs from the queue and delivers them with a Sender.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Sender   Sender
	Logger   *slog.Logger
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are re-dialed with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	if c.Queue == "" {
		c.Queue = DefaultMailQueue
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 20
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Logger.Warn("mail-consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Warn("mail-consumer: consume loop ended; reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Logger.Warn("mail-consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.Logger.Error("mail-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false) // dropped, not requeued, to avoid hot loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one queued body and delivers it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var job MailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if strings.TrimSpace(job.To) == "" {
		return errors.New("mail job has no recipient")
	}
	if err := c.Sender.Send(ctx, job.MailMessage); err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	c.Logger.Info("mail delivered", "kind", job.Kind, "queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond))
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
