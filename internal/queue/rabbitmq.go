package queue

import (
	"fmt"
	"time"

	"todo_auth/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// SetupRabbitMQ dials with retries, or returns nil when RabbitMQ is not
// configured.
func SetupRabbitMQ(rabbitMQCfg *config.RabbitMQConfig) *amqp.Connection {
	if !rabbitMQCfg.Enabled() {
		logrus.Warn("RABBITMQ_URL not set, activity events are disabled")
		return nil
	}

	var conn *amqp.Connection
	var err error

	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(rabbitMQCfg.URL)
		if err != nil {
			logrus.Warnf("Failed to connect to RabbitMQ (attempt %d/%d): %v", i+1, maxRetries, err)
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}

		break
	}

	if err != nil {
		logrus.Fatalf("Failed to connect to RabbitMQ after %d attempts: %v", maxRetries, err)
	}

	logrus.Info("RabbitMQ connection established successfully")
	return conn
}

func CreateChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	return ch, nil
}

// DeadLetterQueueName is where the broker moves rejected deliveries from
// queueName.
func DeadLetterQueueName(queueName string) string {
	return queueName + ".dead"
}

// queueArgs routes rejected messages through the default exchange to the
// dead-letter queue. Changing them on an existing queue makes the broker
// refuse the declare with PRECONDITION_FAILED.
func queueArgs(queueName string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterQueueName(queueName),
	}
}

// DeclareQueue declares queueName and its dead-letter queue.
func DeclareQueue(ch *amqp.Channel, queueName string) (amqp.Queue, error) {
	if _, err := ch.QueueDeclare(
		DeadLetterQueueName(queueName),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,            // name
		true,                 // durable
		false,                // delete when unused
		false,                // exclusive
		false,                // no-wait
		queueArgs(queueName), // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	return q, nil
}
