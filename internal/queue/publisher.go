package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/eventhub/internal/logger"
)

const publishDialTimeout = 3 * time.Second

// Publisher sends AuthEvents to a durable queue, dialing a connection per publish.
type Publisher struct {
	url   string
	queue string
}

func NewPublisher(url, queue string) *Publisher {
	if queue == "" {
		queue = DefaultAuditQueue
	}
	return &Publisher{url: url, queue: queue}
}

// Publish marshals the event and publishes it as a persistent message.
// Errors are logged and returned so the caller can choose to ignore them.
func (p *Publisher) Publish(ctx context.Context, event AuthEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Str("type", event.Type).Msg("amqp: marshal event failed")
		return err
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(publishDialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		logger.Warn().Err(err).Msg("amqp: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Warn().Err(err).Msg("amqp: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := declareQueue(ch, p.queue); err != nil {
		logger.Warn().Err(err).Str("queue", p.queue).Msg("amqp: queue declare failed")
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         event.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		logger.Warn().Err(err).Str("queue", p.queue).Msg("amqp: publish failed")
		return err
	}
	return nil
}

// NopPublisher drops every event. Used when AMQP is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	return err
}
