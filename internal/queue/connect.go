package queue

import (
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleettrack/internal/config"
)

// Connect dials RabbitMQ with retries. The broker usually comes up alongside
// this process, so transient refusals during startup are expected.
func Connect(cfg config.RabbitMQConfig, log *slog.Logger) (*amqp.Connection, error) {
	connStr := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.User, cfg.Password, cfg.Host, cfg.Port)

	var conn *amqp.Connection
	var err error

	maxRetries := 30
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(connStr)
		if err == nil {
			return conn, nil
		}
		log.Warn("rabbitmq dial failed", "attempt", i+1, "max", maxRetries, "error", err)
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}
