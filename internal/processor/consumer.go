// consumer.go: bridges queue deliveries into processor batches.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/waterdeep/usersync/internal/logging"
	"github.com/waterdeep/usersync/internal/queue"
)

// Consumer subscribes to the job topic, gathers deliveries into bounded
// batches and applies the per-item acknowledgment policy to the results.
type Consumer struct {
	client        queue.Client
	proc          *Processor
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	msgCh         chan queue.Message
}

// NewConsumer creates a Consumer that flushes after batchSize messages or
// flushInterval, whichever comes first.
func NewConsumer(client queue.Client, proc *Processor, batchSize int, flushInterval time.Duration) *Consumer {
	if batchSize <= 0 {
		batchSize = 10
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	logger := logging.ForService("processor")
	if logger == nil {
		logger = slog.Default().With("service", "processor")
	}
	return &Consumer{
		client:        client,
		proc:          proc,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		msgCh:         make(chan queue.Message, batchSize),
	}
}

// Run subscribes and processes deliveries until the context is canceled.
// Unacknowledged messages are redelivered by the broker after reconnect.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.client.Subscribe(ctx, func(msg queue.Message) {
		select {
		case c.msgCh <- msg:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}

	buf := make([]queue.Message, 0, c.batchSize)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.msgCh:
			buf = append(buf, msg)
			if len(buf) >= c.batchSize {
				c.flush(ctx, buf)
				buf = buf[:0]
			}
		case <-ticker.C:
			if len(buf) > 0 {
				c.flush(ctx, buf)
				buf = buf[:0]
			}
		case <-ctx.Done():
			if len(buf) > 0 {
				c.flush(context.WithoutCancel(ctx), buf)
			}
			return ctx.Err()
		}
	}
}

// flush runs one delivered batch through the processor and acknowledges each
// message according to its own result.
func (c *Consumer) flush(ctx context.Context, msgs []queue.Message) {
	bodies := make([]string, len(msgs))
	for i, msg := range msgs {
		bodies[i] = msg.Body()
	}

	results := c.proc.ProcessBatch(ctx, bodies)
	acked := 0
	for i, result := range results {
		if result.ShouldAck() {
			msgs[i].Ack()
			acked++
		}
	}
	c.logger.Debug("batch flushed", "size", len(msgs), "acked", acked)
}
