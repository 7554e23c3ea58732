package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"fleettrack/internal/models"
	"fleettrack/internal/observability"
)

const (
	exchangeName = "telemetry_topic"
	queueName    = "gps_location_updates"
)

// HandleResult tells the consume loop what to do with a delivery.
type HandleResult int

const (
	// Done: job finished (persisted or intentionally dropped). Ack.
	Done HandleResult = iota
	// Retry: transient failure. Nack with requeue on first delivery; a
	// redelivered job that fails again is dropped rather than looping forever.
	Retry
)

// JobHandler processes one decoded ingest job.
type JobHandler func(ctx context.Context, job models.IngestJob) HandleResult

// Queue is the durable work queue between the fetch path and persistence,
// backed by a RabbitMQ topic exchange. Job kind doubles as the routing key so
// future kinds bind their own queues without touching this plumbing.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *slog.Logger
}

func New(conn *amqp.Connection, log *slog.Logger) (*Queue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	err = ch.QueueBind(
		q.Name,
		models.JobKindLocationUpdated, // binding key = job kind
		exchangeName,
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to bind queue %s: %w", queueName, err)
	}

	return &Queue{conn: conn, ch: ch, log: log}, nil
}

// Enqueue publishes one job as a persistent JSON message. Fire-and-forget for
// the caller past the broker confirm: the fetch cycle never waits on
// persistence.
func (q *Queue) Enqueue(ctx context.Context, job models.IngestJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.ch.PublishWithContext(ctx,
		exchangeName,
		job.Kind, // routing key
		false,    // mandatory
		false,    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			MessageId:    job.ID,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	observability.JobsEnqueued.Inc()
	return nil
}

// Consume runs the worker loop until the context is cancelled or the channel
// closes. Deliveries are manually acked; prefetch bounds how many jobs are in
// flight per consumer.
func (q *Queue) Consume(ctx context.Context, prefetch int, handler JobHandler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	msgs, err := ch.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.log.Info("started consuming ingest jobs", "queue", queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("consumer channel closed")
			}
			q.handleDelivery(ctx, msg, handler)
		}
	}
}

func (q *Queue) handleDelivery(ctx context.Context, msg amqp.Delivery, handler JobHandler) {
	var job models.IngestJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		q.log.Error("failed to unmarshal ingest job", "error", err)
		_ = msg.Ack(false)
		return
	}

	switch handler(ctx, job) {
	case Retry:
		if msg.Redelivered {
			q.log.Warn("dropping job after redelivery failure", "job_id", job.ID, "device_id", job.Location.DeviceID)
			_ = msg.Ack(false)
			return
		}
		_ = msg.Nack(false, true)
	default:
		_ = msg.Ack(false)
	}
}

func (q *Queue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	return nil
}
