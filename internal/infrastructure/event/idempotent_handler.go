package event

import (
	"context"
	"sync/atomic"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryStats counts what an IdempotentHandler did with the events it saw
type DeliveryStats struct {
	Delivered int64 `json:"delivered"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
}

type deliveryCounters struct {
	delivered, skipped, failed atomic.Int64
}

// IdempotentHandler runs the wrapped handler at most once per event. Claims
// are keyed "<name>:<event id>", so when the outbox redelivers an event after
// one of several subscribers failed, only that subscriber runs again.
type IdempotentHandler struct {
	name     string
	inner    shared.EventHandler
	claims   shared.IdempotencyStore
	cfg      shared.IdempotencyConfig
	logger   *zap.Logger
	counters deliveryCounters
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig overrides the claim TTL or disables deduplication
func WithIdempotencyConfig(cfg shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) { h.cfg = cfg }
}

// NewIdempotentHandler wraps inner under name
func NewIdempotentHandler(
	name string,
	inner shared.EventHandler,
	claims shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		name:   name,
		inner:  inner,
		claims: claims,
		cfg:    shared.DefaultIdempotencyConfig(),
		logger: logger.With(zap.String("handler", name)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name identifies the handler in logs and claim keys
func (h *IdempotentHandler) Name() string { return h.name }

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string { return h.inner.EventTypes() }

// Handle claims the event for this handler and runs it. A failed run releases
// the claim so that the next delivery retries. When the claim store itself is
// unreachable the event is handled anyway: a repeated vendor notice or
// receiving request is recoverable, a lost one is not.
func (h *IdempotentHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	if !h.cfg.Enabled {
		return h.run(ctx, ev, "")
	}

	key := h.name + ":" + ev.EventID().String()
	fresh, err := h.claims.MarkProcessed(ctx, key, h.cfg.TTL)
	switch {
	case err != nil:
		h.logger.Warn("idempotency check failed, processing anyway",
			zap.String("event_id", ev.EventID().String()), zap.Error(err))
	case !fresh:
		h.counters.skipped.Add(1)
		h.logger.Debug("duplicate event skipped",
			zap.String("event_id", ev.EventID().String()),
			zap.String("event_type", ev.EventType()))
		return nil
	}
	return h.run(ctx, ev, key)
}

func (h *IdempotentHandler) run(ctx context.Context, ev shared.DomainEvent, key string) error {
	if err := h.inner.Handle(ctx, ev); err != nil {
		h.counters.failed.Add(1)
		if key != "" {
			if rerr := h.claims.Release(context.WithoutCancel(ctx), key); rerr != nil {
				h.logger.Error("failed to release idempotency key",
					zap.String("key", key), zap.Error(rerr))
			}
		}
		return err
	}
	h.counters.delivered.Add(1)
	return nil
}

// Stats returns the delivery counts so far
func (h *IdempotentHandler) Stats() DeliveryStats {
	return DeliveryStats{
		Delivered: h.counters.delivered.Load(),
		Skipped:   h.counters.skipped.Load(),
		Failed:    h.counters.failed.Load(),
	}
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
