package event

import (
	"context"
	"fmt"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxProcessorConfig holds configuration for the outbox relay
type OutboxProcessorConfig struct {
	BatchSize        int
	PollInterval     time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// DefaultOutboxProcessorConfig returns default configuration
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:        100,
		PollInterval:     2 * time.Second,
		CleanupEnabled:   true,
		CleanupRetention: 7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// OutboxProcessor relays outbox entries to the event bus. Delivery is at
// least once: a failed publish is retried with backoff until the entry's
// attempts run out, then it is dead-lettered.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	eventBus   shared.EventPublisher
	serializer *EventSerializer
	config     OutboxProcessorConfig
	logger     *zap.Logger
	clock      shared.Clock
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	eventBus shared.EventPublisher,
	serializer *EventSerializer,
	config OutboxProcessorConfig,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		repo:       repo,
		eventBus:   eventBus,
		serializer: serializer,
		config:     config,
		logger:     logger,
		clock:      time.Now,
	}
}

// SetClock overrides the time source, for tests
func (p *OutboxProcessor) SetClock(c shared.Clock) {
	p.clock = c
}

// Run polls the outbox until ctx is cancelled
func (p *OutboxProcessor) Run(ctx context.Context) error {
	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.config.BatchSize),
		zap.Duration("poll_interval", p.config.PollInterval),
	)
	poll := time.NewTicker(p.config.PollInterval)
	defer poll.Stop()

	var cleanup <-chan time.Time
	if p.config.CleanupEnabled {
		t := time.NewTicker(p.config.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("outbox processor stopped")
			return nil
		case <-poll.C:
			p.ProcessDue(ctx)
		case <-cleanup:
			p.cleanup(ctx)
		}
	}
}

// ProcessDue delivers one batch of due entries and returns how many were sent
func (p *OutboxProcessor) ProcessDue(ctx context.Context) int {
	due, err := p.repo.FindDue(ctx, p.clock(), p.config.BatchSize)
	if err != nil {
		p.logger.Error("failed to find due outbox entries", zap.Error(err))
		return 0
	}

	sent := 0
	for _, entry := range due {
		claimed, err := p.repo.Claim(ctx, entry.ID, p.clock())
		if err != nil {
			p.logger.Error("failed to claim outbox entry",
				zap.String("event_id", entry.EventID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if p.processEntry(ctx, entry) {
			sent++
		}
	}
	return sent
}

func (p *OutboxProcessor) processEntry(ctx context.Context, entry *shared.OutboxEntry) bool {
	fields := []zap.Field{
		zap.String("event_id", entry.EventID.String()),
		zap.String("event_type", entry.EventType),
		zap.String("aggregate_type", entry.AggregateType),
		zap.String("aggregate_id", entry.AggregateID.String()),
	}

	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err == nil && event.EventType() != entry.EventType {
		// a payload that lost its type would match no handler and be marked sent
		err = fmt.Errorf("payload carries event type %q, row says %q", event.EventType(), entry.EventType)
	}
	if err == nil {
		err = p.eventBus.Publish(ctx, event)
	}
	if err != nil {
		entry.MarkFailed(err.Error(), p.clock())
		if entry.IsDead() {
			p.logger.Error("outbox entry dead-lettered",
				append(fields, zap.Int("attempts", entry.Attempts), zap.String("last_error", entry.LastError))...)
		} else {
			p.logger.Warn("outbox delivery failed, will retry",
				append(fields, zap.Int("attempts", entry.Attempts), zap.Time("next_attempt_at", entry.NextAttemptAt), zap.Error(err))...)
		}
		if uerr := p.repo.Update(ctx, entry); uerr != nil {
			p.logger.Error("failed to update outbox entry", append(fields, zap.Error(uerr))...)
		}
		return false
	}

	entry.MarkSent(p.clock())
	if err := p.repo.Update(ctx, entry); err != nil {
		p.logger.Error("failed to mark outbox entry as sent", append(fields, zap.Error(err))...)
		return false
	}
	p.logger.Debug("outbox entry delivered", fields...)
	return true
}

func (p *OutboxProcessor) cleanup(ctx context.Context) {
	cutoff := p.clock().Add(-p.config.CleanupRetention)
	deleted, err := p.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		p.logger.Error("failed to clean up outbox entries", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("cleaned up outbox entries",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
}
