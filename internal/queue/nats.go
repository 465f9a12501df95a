package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectResave is the NATS subject resave jobs are published on.
const SubjectResave = "cms.jobs.resave"

// ConsumerGroup is the queue group workers join so each job is handled by
// one worker.
const ConsumerGroup = "cms-resave"

// NATSQueue publishes jobs as JSON to SubjectResave.
type NATSQueue struct {
	conn *nats.Conn
}

// NewNATSQueue publishes over nc. The caller owns the connection.
func NewNATSQueue(nc *nats.Conn) *NATSQueue {
	return &NATSQueue{conn: nc}
}

func (q *NATSQueue) Push(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn.IsClosed() {
		return ErrClosed
	}
	if err := assignID(&job); err != nil {
		return err
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job: %w", err)
	}
	if err := q.conn.Publish(SubjectResave, data); err != nil {
		return fmt.Errorf("publishing job %s: %w", job.ID, err)
	}
	return nil
}

// Close flushes buffered jobs; the connection stays open.
func (q *NATSQueue) Close() error {
	if q.conn.IsClosed() {
		return nil
	}
	return q.conn.Flush()
}

// NATSConsumer delivers jobs from SubjectResave to a Handler.
type NATSConsumer struct {
	conn    *nats.Conn
	handler Handler
	logger  *slog.Logger
	sub     *nats.Subscription
}

// NewNATSConsumer creates a consumer; call Start to subscribe.
func NewNATSConsumer(nc *nats.Conn, h Handler, logger *slog.Logger) *NATSConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSConsumer{conn: nc, handler: h, logger: logger}
}

// Start joins the consumer group. Handler errors are logged; the job is not
// redelivered.
func (c *NATSConsumer) Start(ctx context.Context) error {
	sub, err := c.conn.QueueSubscribe(SubjectResave, ConsumerGroup, func(msg *nats.Msg) {
		var job Job
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			c.logger.Warn("dropping malformed job", "err", err)
			return
		}
		if err := c.handler(ctx, job); err != nil {
			c.logger.Error("job failed", "job", job.ID, "description", job.Description, "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", SubjectResave, err)
	}
	if err := c.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flushing subscription: %w", err)
	}
	c.sub = sub
	return nil
}

// Stop unsubscribes after in-flight messages are handled.
func (c *NATSConsumer) Stop() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Drain()
}
