package bus

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestChannelBusDeliversToSubscriber(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var received atomic.Int64
	var lastPayload atomic.Value

	_, err := b.Subscribe(ctx, "tenant-a", TopicPolicyExecuted, func(ctx context.Context, msg *Message) error {
		lastPayload.Store(string(msg.Payload))
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-a", TopicPolicyExecuted, []byte(`{"policyId":"pol-1"}`)); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	waitFor(t, func() bool { return received.Load() == 1 })
	if got := lastPayload.Load().(string); got != `{"policyId":"pol-1"}` {
		t.Errorf("payload = %q", got)
	}
}

func TestChannelBusIsolatesTenantsAndTopics(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var tenantA, tenantB atomic.Int64

	if _, err := b.Subscribe(ctx, "tenant-a", TopicArchiveCreated, func(ctx context.Context, msg *Message) error {
		tenantA.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	if _, err := b.Subscribe(ctx, "tenant-b", TopicArchiveCreated, func(ctx context.Context, msg *Message) error {
		tenantB.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-a", TopicArchiveCreated, []byte("a")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}
	// Different topic, same tenant: nobody listens.
	if err := b.Publish(ctx, "tenant-a", TopicRecordsDeleted, []byte("x")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	waitFor(t, func() bool { return tenantA.Load() == 1 })
	if tenantB.Load() != 0 {
		t.Errorf("tenant-b received %d messages, want 0", tenantB.Load())
	}
}

func TestChannelBusUnsubscribe(t *testing.T) {
	b := NewChannelBus(10)
	defer b.Close()
	ctx := context.Background()

	var received atomic.Int64
	sub, err := b.Subscribe(ctx, "tenant-a", TopicPolicyExecuted, func(ctx context.Context, msg *Message) error {
		received.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatalf("Unsubscribe() failed: %v", err)
	}

	if err := b.Publish(ctx, "tenant-a", TopicPolicyExecuted, []byte("late")); err != nil {
		t.Fatalf("Publish() failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if received.Load() != 0 {
		t.Errorf("unsubscribed handler received %d messages", received.Load())
	}
}

func TestChannelBusClosedRejectsPublish(t *testing.T) {
	b := NewChannelBus(10)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := b.Publish(ctx, "tenant-a", TopicPolicyExecuted, nil); err == nil {
		t.Error("Publish() on closed bus succeeded")
	}
	if err := b.Ping(ctx); err == nil {
		t.Error("Ping() on closed bus succeeded")
	}
}

func TestNewSelectsImplementation(t *testing.T) {
	b, err := New(&Config{Type: "channel", ChannelBufferSize: 10})
	if err != nil {
		t.Fatalf("New(channel) failed: %v", err)
	}
	if _, ok := b.(*ChannelBus); !ok {
		t.Errorf("New(channel) = %T, want *ChannelBus", b)
	}
	b.Close()

	if _, err := New(&Config{Type: "kafka"}); err == nil {
		t.Error("New(kafka) succeeded, want error")
	}
}
