// client.go: paho-backed implementation of the queue Client interface.
package queue

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/waterdeep/usersync/internal/conf"
	"github.com/waterdeep/usersync/internal/errors"
)

// jobQoS is the MQTT quality of service for job messages. Level 1 gives the
// at-least-once delivery the pipeline's idempotence is designed around.
const jobQoS = 1

// client implements the Client interface.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
}

// NewClient creates a new queue client with the provided settings.
func NewClient(settings *conf.Settings) Client {
	cfg := DefaultConfig()
	cfg.Broker = settings.Queue.Broker
	cfg.ClientID = settings.Queue.ClientID
	cfg.Username = settings.Queue.Username
	cfg.Password = settings.Queue.Password
	cfg.Topic = settings.Queue.Topic
	if settings.Queue.PublishBatchLimit > 0 {
		cfg.BatchLimit = settings.Queue.PublishBatchLimit
	}
	return &client{config: cfg}
}

// Connect attempts to establish a connection to the broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt)).
			Component("queue").
			Category(errors.CategoryQueueConnect).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("queue").
			Category(errors.CategoryQueueConnect).
			Build()
	}

	host := u.Hostname()

	// Resolve the hostname first so DNS failures surface as such
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve broker hostname %s: %w", host, err)).
				Component("queue").
				Category(errors.CategoryQueueConnect).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	// CleanSession false keeps the broker-side queue of unacknowledged jobs
	// across consumer restarts.
	opts.SetCleanSession(false)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOrderMatters(true)
	// Manual acks: delivery accounting is a per-item policy decision made by
	// the consumer, not a side effect of the handler returning.
	opts.SetAutoAckDisabled(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("connection timeout").
			Component("queue").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("queue").
			Category(errors.CategoryQueueConnect).
			Build()
	}

	return nil
}

// PublishBatch sends one publish group of job entries to the configured topic.
func (c *client) PublishBatch(ctx context.Context, entries []Entry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) > c.config.BatchLimit {
		return 0, errors.Newf("publish batch of %d exceeds transport limit %d", len(entries), c.config.BatchLimit).
			Component("queue").
			Category(errors.CategoryValidation).
			Build()
	}
	if !c.isConnectedLocked() {
		return 0, errors.Newf("not connected to MQTT broker").
			Component("queue").
			Category(errors.CategoryQueueConnect).
			Build()
	}

	published := 0
	for i := range entries {
		entry := &entries[i]
		if err := ctx.Err(); err != nil {
			return published, errors.New(err).
				Component("queue").
				Category(errors.CategoryCancellation).
				Build()
		}

		token := c.internalClient.Publish(c.config.Topic, jobQoS, false, entry.Body)
		if !token.WaitTimeout(c.config.PublishTimeout) {
			return published, errors.Newf("publish timeout for entry %s", entry.ID).
				Component("queue").
				Category(errors.CategoryTimeout).
				Context("entry_id", entry.ID).
				Build()
		}
		if err := token.Error(); err != nil {
			return published, errors.New(fmt.Errorf("publish failed for entry %s: %w", entry.ID, err)).
				Component("queue").
				Category(errors.CategoryQueuePublish).
				Context("entry_id", entry.ID).
				Build()
		}
		published++
	}

	getLogger().Debug("publish batch delivered", "topic", c.config.Topic, "entries", published)
	return published, nil
}

// pahoMessage adapts a delivered paho message to the Message interface.
type pahoMessage struct {
	inner mqtt.Message
}

func (m *pahoMessage) Body() string { return string(m.inner.Payload()) }
func (m *pahoMessage) Ack()         { m.inner.Ack() }

// Subscribe registers a handler for job messages on the configured topic.
func (c *client) Subscribe(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.config.Topic == "" {
		return errors.Newf("no queue topic configured").
			Component("queue").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !c.isConnectedLocked() {
		return errors.Newf("not connected to MQTT broker").
			Component("queue").
			Category(errors.CategoryQueueConnect).
			Build()
	}

	token := c.internalClient.Subscribe(c.config.Topic, jobQoS, func(_ mqtt.Client, msg mqtt.Message) {
		handler(&pahoMessage{inner: msg})
	})
	if !token.WaitTimeout(c.config.SubscribeTimeout) {
		return errors.Newf("subscribe timeout").
			Component("queue").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("subscribe failed: %w", err)).
			Component("queue").
			Category(errors.CategoryQueueConsume).
			Build()
	}

	getLogger().Info("subscribed to job topic", "topic", c.config.Topic)
	return nil
}

// IsConnected returns true if the client is currently connected to the broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnectedLocked()
}

func (c *client) isConnectedLocked() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	}
}

func (c *client) onConnect(_ mqtt.Client) {
	getLogger().Info("connected to MQTT broker", "broker", c.config.Broker)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	getLogger().Warn("connection to MQTT broker lost", "broker", c.config.Broker, "error", err)
}
