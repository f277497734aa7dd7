package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/marketplace-auth/internal/model"
)

// Publisher publishes mail jobs to a durable queue.  It opens a connection
// per message, which keeps the API free of long-lived broker state at the
// cost of a dial per password reset.
type Publisher struct {
	URL   string
	Queue string
	dial  func(url string) (amqpConn, error)
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultMailQueue
	}
	return &Publisher{URL: url, Queue: queue, dial: dialAMQP}
}

// Send publishes msg as a persistent JSON message.  Every failure is
// reported as ErrDelivery with the broker error attached.
func (p *Publisher) Send(ctx context.Context, msg model.MailMessage) error {
	body, err := json.Marshal(MailJob{MailMessage: msg, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrDelivery, err)
	}

	conn, err := p.dial(p.URL)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrDelivery, err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("%w: channel open: %v", ErrDelivery, err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%w: queue declare: %v", ErrDelivery, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("%w: publish: %v", ErrDelivery, err)
	}
	return nil
}

// amqpConn and amqpChannel are the slices of the amqp091 API used here.
type amqpConn interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connAdapter struct{ *amqp.Connection }

func (c connAdapter) Channel() (amqpChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (amqpConn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return connAdapter{conn}, nil
}
