package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StatusEvent is published after every committed contact status change.
type StatusEvent struct {
	ContactID string    `json:"contact_id"`
	Email     string    `json:"email"`
	Stage     string    `json:"stage"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Note      string    `json:"note,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	At        time.Time `json:"at"`
}

// RoutingKey is contact.<stage>.<to>, e.g. contact.verify.rejected.
func (e StatusEvent) RoutingKey() string {
	return fmt.Sprintf("contact.%s.%s", e.Stage, e.To)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQProducer struct {
	Ch channel
}

func NewProducer(ch *amqp.Channel) *RabbitMQProducer {
	return &RabbitMQProducer{Ch: ch}
}

func (p *RabbitMQProducer) PublishStatusChange(ctx context.Context, event StatusEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}

	err = p.Ch.PublishWithContext(ctx,
		ExchangeName,
		event.RoutingKey(),
		false, // Mandatory
		false, // Immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.At,
		},
	)
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	return nil
}

// NoopProducer is used when AMQP_URL is not set.
type NoopProducer struct{}

func (NoopProducer) PublishStatusChange(context.Context, StatusEvent) error { return nil }
