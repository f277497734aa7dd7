// Package queue carries outbound mail over RabbitMQ: the API publishes
// messages and the mail worker consumes and delivers them.
package queue

import (
	"errors"
	"time"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// DefaultMailQueue is the durable queue outbound mail is routed through.
const DefaultMailQueue = "mail.outbound"

// ErrDelivery marks a message that could not be handed to the broker or
// delivered by the worker.
var ErrDelivery = errors.New("mail delivery failed")

// MailJob is the JSON envelope published for each outbound message.
type MailJob struct {
	model.MailMessage
	EnqueuedAt time.Time `json:"enqueued_at"`
}
