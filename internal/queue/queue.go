// queue.go: Package queue provides the migration job transport on top of MQTT.
package queue

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/waterdeep/usersync/internal/logging"
)

// Entry is one message in a publish batch. ID is a fresh identifier per
// publish attempt, never derived from the user ID.
type Entry struct {
	ID   string
	Body string
}

// NewEntry builds a publish entry for one user ID with a fresh identifier.
func NewEntry(userID int64) Entry {
	return Entry{
		ID:   uuid.NewString(),
		Body: strconv.FormatInt(userID, 10),
	}
}

// Message is one delivered job message. Ack acknowledges the message so the
// broker will not redeliver it; an unacknowledged message is redelivered.
type Message interface {
	Body() string
	Ack()
}

// Handler consumes one delivered message. The handler owns the ack decision.
type Handler func(msg Message)

// Client defines the interface for job queue operations.
type Client interface {
	// Connect attempts to connect to the broker.
	Connect(ctx context.Context) error

	// PublishBatch sends one batch of at most Config.BatchLimit entries to the
	// configured topic. It returns the number of entries delivered; on error
	// the count covers the entries delivered before the failure.
	PublishBatch(ctx context.Context, entries []Entry) (int, error)

	// Subscribe registers a handler for delivered job messages. Messages are
	// delivered in order and acknowledged only when the handler acks them.
	Subscribe(ctx context.Context, handler Handler) error

	// IsConnected returns true if the client is currently connected to the broker.
	IsConnected() bool

	// Disconnect closes the connection to the broker.
	Disconnect()
}

// Config holds the configuration for the queue client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // job topic
	BatchLimit        int    // max entries per publish batch
	ReconnectCooldown time.Duration
	// Connection timeouts
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	SubscribeTimeout  time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		BatchLimit:        10,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		SubscribeTimeout:  10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// Package-level logger for queue related events, initialized lazily so tests
// that never touch the broker do not force config loading.
var (
	queueLogger     *slog.Logger
	queueLoggerOnce sync.Once
)

func getLogger() *slog.Logger {
	queueLoggerOnce.Do(func() {
		queueLogger = logging.ForService("queue")
		if queueLogger == nil {
			queueLogger = slog.Default().With("service", "queue")
		}
	})
	return queueLogger
}
