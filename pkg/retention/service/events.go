package service

import (
	"context"
	"encoding/json"

	"custodia-hq/amber/pkg/bus"
)

// chainAppend writes an entry to the audit chain and announces it on the
// bus. Chain failures are logged, never propagated: the operation that
// triggered the entry has already happened.
func (s *Service) chainAppend(ctx context.Context, tenantID, category, eventType string, data map[string]any) {
	entry, err := s.chain.Append(category, eventType, data)
	if err != nil {
		s.logger.Error("audit chain append failed",
			"category", category,
			"event_type", eventType,
			"error", err)
		return
	}
	if entry == nil {
		return
	}

	s.metrics.RecordChainAppend(category)
	s.publish(ctx, tenantID, bus.TopicChainAppended, map[string]any{
		"category":  category,
		"eventType": eventType,
		"index":     entry.Index,
	})
}

// publish sends an event to the bus when one is configured.
func (s *Service) publish(ctx context.Context, tenantID, topic string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("event payload marshal failed", "topic", topic, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, tenantID, topic, data); err != nil {
		s.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}
