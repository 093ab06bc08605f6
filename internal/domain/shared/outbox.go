package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus represents the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultOutboxMaxAttempts = 8
	DefaultOutboxBackoff     = 2 * time.Second
	maxOutboxBackoff         = 10 * time.Minute
)

// OutboxEntry is a lifecycle side effect persisted in the same transaction as
// the aggregate change that produced it. The relay publishes it afterwards.
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	MaxAttempts   int
	LastError     string
	NextAttemptAt time.Time
	SentAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized domain event
func NewOutboxEntry(event DomainEvent, payload []byte, now time.Time) *OutboxEntry {
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxAttempts:   DefaultOutboxMaxAttempts,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// MarkSent records successful delivery
func (e *OutboxEntry) MarkSent(now time.Time) {
	e.Status = OutboxStatusSent
	e.SentAt = &now
	e.LastError = ""
	e.UpdatedAt = now
}

// MarkFailed records a failed delivery attempt and schedules the next one with
// exponential backoff. Once MaxAttempts is reached the entry is dead-lettered.
func (e *OutboxEntry) MarkFailed(cause string, now time.Time) {
	e.Attempts++
	e.LastError = cause
	e.UpdatedAt = now
	if e.Attempts >= e.MaxAttempts {
		e.Status = OutboxStatusDead
		return
	}
	e.Status = OutboxStatusFailed
	e.NextAttemptAt = now.Add(OutboxBackoff(e.Attempts))
}

// ResetForRetry puts a dead-lettered entry back in the queue with a fresh
// attempt budget
func (e *OutboxEntry) ResetForRetry(now time.Time) error {
	if e.Status != OutboxStatusDead {
		return NewDomainError(CodeInvalidState,
			fmt.Sprintf("outbox entry is %s, only dead entries can be retried", e.Status))
	}
	e.Status = OutboxStatusPending
	e.Attempts = 0
	e.LastError = ""
	e.NextAttemptAt = now
	e.UpdatedAt = now
	return nil
}

// IsDead returns true if the entry will not be retried
func (e *OutboxEntry) IsDead() bool {
	return e.Status == OutboxStatusDead
}

// OutboxBackoff returns the delay before retry number attempt (1-based)
func OutboxBackoff(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := DefaultOutboxBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxOutboxBackoff {
			return maxOutboxBackoff
		}
	}
	return d
}

// OutboxRepository persists outbox entries
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	// FindDue returns pending or failed entries whose next attempt is due, oldest first
	FindDue(ctx context.Context, now time.Time, limit int) ([]*OutboxEntry, error)
	// Claim moves the entry to PROCESSING; false means another relay got it first
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteSentBefore(ctx context.Context, before time.Time) (int64, error)
}
