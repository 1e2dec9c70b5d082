// Package bus publishes retention lifecycle events to downstream
// consumers such as alerting and compliance dashboards. The channel bus
// serves a single process; the NATS bus fans events out to a fleet.
package bus

import (
	"context"
	"fmt"
)

// Topics emitted by the retention service.
const (
	TopicPolicyExecuted  = "policy.executed"
	TopicArchiveCreated  = "archive.created"
	TopicArchiveRestored = "archive.restored"
	TopicArchiveDeleted  = "archive.deleted"
	TopicRecordsDeleted  = "records.deleted"
	TopicChainAppended   = "chain.appended"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Topic    string `json:"topic"`
	Payload  []byte `json:"payload"`

	Metadata map[string]string `json:"metadata,omitempty"`

	// Timestamp is the publish time in Unix nanoseconds.
	Timestamp int64 `json:"timestamp"`
}

// Handler consumes messages for a subscription.
type Handler func(ctx context.Context, msg *Message) error

// Subscription is an active topic subscription.
type Subscription interface {
	// Unsubscribe stops message delivery.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// Bus delivers tenant-scoped messages by topic.
type Bus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	Subscribe(ctx context.Context, tenantID, topic string, handler Handler) (Subscription, error)

	// Ping checks bus health.
	Ping(ctx context.Context) error

	// Close shuts the bus down.
	Close() error
}

// Config contains configuration for the event bus.
type Config struct {
	// Type selects the implementation: "channel" or "nats".
	Type string `yaml:"type"`

	// ChannelBufferSize sizes per-subscription buffers for the channel bus.
	ChannelBufferSize int `yaml:"channel_buffer_size"`

	NATSUrl           string `yaml:"nats_url"`
	NATSToken         string `yaml:"nats_token"`
	NATSMaxReconnects int    `yaml:"nats_max_reconnects"`
	NATSReconnectWait int    `yaml:"nats_reconnect_wait"`
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() *Config {
	return &Config{
		Type:              "channel",
		ChannelBufferSize: 1000,
	}
}

// New creates an event bus for the configured type.
func New(cfg *Config) (Bus, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
