package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-pass-system/internal/queue"
)

// Publisher announces pass lifecycle events.  Implementations must not
// block for long; the manager ignores their errors apart from logging.
type Publisher interface {
	PassIssued(ctx context.Context, ev queue.PassIssuedEvent) error
	PassScanned(ctx context.Context, ev queue.PassScannedEvent) error
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) PassIssued(context.Context, queue.PassIssuedEvent) error   { return nil }
func (NopPublisher) PassScanned(context.Context, queue.PassScannedEvent) error { return nil }

// AMQPPublisher publishes events to durable RabbitMQ queues through the
// default exchange.  Each publish opens its own connection so a broker
// outage never leaves a broken connection behind.
type AMQPPublisher struct {
	URL     string
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string, logger logrus.FieldLogger) *AMQPPublisher {
	return &AMQPPublisher{URL: url, Timeout: 3 * time.Second, Logger: logger}
}

func (p *AMQPPublisher) PassIssued(ctx context.Context, ev queue.PassIssuedEvent) error {
	return p.publish(ctx, queue.PassIssuedQueue, ev)
}

func (p *AMQPPublisher) PassScanned(ctx context.Context, ev queue.PassScannedEvent) error {
	return p.publish(ctx, queue.PassScannedQueue, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, queueName string, event any) error {
	log := p.Logger.WithField("queue", queueName)
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
		log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}
