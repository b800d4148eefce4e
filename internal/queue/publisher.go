package queue

import (
	"context"
	"fmt"
	"sync"

	"todo_auth/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}

// AMQPPublisher sends persistent JSON messages to a single queue through the
// default exchange. The channel is opened lazily and reopened after a failure.
type AMQPPublisher struct {
	conn      *amqp.Connection
	queueName string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPPublisher(conn *amqp.Connection, queueName string) *AMQPPublisher {
	return &AMQPPublisher{conn: conn, queueName: queueName}
}

func (p *AMQPPublisher) Publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		ch, err := CreateChannel(p.conn)
		if err != nil {
			return err
		}
		if _, err := DeclareQueue(ch, p.queueName); err != nil {
			_ = ch.Close()
			return err
		}
		p.ch = ch
	}

	err := p.ch.PublishWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key (queue name)
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		_ = p.ch.Close()
		p.ch = nil
		return fmt.Errorf("publish to %s: %w", p.queueName, err)
	}

	observability.GlobalMetrics.QueueMessagesPublished.WithLabelValues(p.queueName).Inc()
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}

// NoopPublisher drops every message. Used when RabbitMQ is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, []byte) error { return nil }
