package worker

import (
	"context"
	"errors"
	"time"

	"todo_auth/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	retryHeader = "x-retry-count"
	maxRetries  = 3
)

// publisher is the part of *amqp.Channel used to put a failed event back on
// its queue.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func republishWithRetry(ctx context.Context, ch publisher, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	// Create new headers with incremented retry count
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

// retryCountOf reads the retry header. Brokers may hand integers back with a
// different width than they were published with.
func retryCountOf(headers amqp.Table) int32 {
	switch v := headers[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	case int16:
		return int32(v)
	case int8:
		return int32(v)
	default:
		return 0
	}
}

// StartWorker consumes queueName until ctx is cancelled or the channel
// closes.
func StartWorker(ctx context.Context, conn *amqp.Connection, queueName string, proc *Processor, id int) {
	ch, err := conn.Channel()
	if err != nil {
		logrus.Fatalf("Worker %d failed to open channel: %v", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		logrus.Fatalf("Worker %d failed to set QoS: %v", id, err)
	}

	msgs, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logrus.Fatalf("Worker %d failed to start consuming messages: %v", id, err)
		return
	}

	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return
		case msg, ok := <-msgs:
			if !ok {
				logrus.Warnf("Worker %d: delivery channel closed", id)
				return
			}
			handleDelivery(ctx, ch, proc, queueName, &msg, id)
		}
	}
}

// handleDelivery settles one delivery. Events that fail because the worker
// is shutting down go back on the queue untouched. Rejected events are
// dead-lettered by the broker.
func handleDelivery(ctx context.Context, ch publisher, proc *Processor, queueName string, msg *amqp.Delivery, id int) {
	observability.GlobalMetrics.QueueMessagesConsumed.WithLabelValues(queueName).Inc()

	retryCount := retryCountOf(msg.Headers)

	event, err := proc.Handle(ctx, msg.Body, id)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	eventType := string(event.Type)
	if eventType == "" {
		eventType = "unknown"
	}

	if errors.Is(err, ErrPoisonMessage) {
		logrus.WithError(err).Error("invalid payload")
		observability.GlobalMetrics.ActivityEventsFailed.WithLabelValues(eventType, "invalid_payload").Inc()
		_ = msg.Nack(false, false)
		return
	}

	if ctx.Err() != nil {
		logrus.WithField("event_id", event.ID).Infof("Worker %d: stopping, returning event to queue", id)
		_ = msg.Nack(false, true)
		return
	}

	logrus.WithError(err).WithField("event_id", event.ID).Error("Failed to store activity event")

	if retryCount >= maxRetries {
		observability.GlobalMetrics.ActivityEventsFailed.WithLabelValues(eventType, "max_retries").Inc()
		_ = msg.Nack(false, false)
		return
	}

	logrus.Infof("Worker %d: event failed, requeuing (retry %d/%d)", id, retryCount+1, maxRetries)

	if err := republishWithRetry(ctx, ch, msg, retryCount+1); err != nil {
		logrus.WithError(err).Error("Failed to republish message")
		observability.GlobalMetrics.ActivityEventsFailed.WithLabelValues(eventType, "republish_error").Inc()
		_ = msg.Nack(false, ctx.Err() != nil)
		return
	}

	observability.GlobalMetrics.QueueMessagesPublished.WithLabelValues(queueName).Inc()
	_ = msg.Ack(false)
}
