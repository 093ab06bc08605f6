package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps. Aggregates stamp the
// timestamps from their own clock.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BaseAggregateRoot adds the optimistic-concurrency version and the events
// raised since the aggregate was loaded. Repositories bump Version and drain
// the events into the outbox in the same transaction.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot returns a version 1 root with a fresh id
func NewBaseAggregateRoot() BaseAggregateRoot {
	now := SystemClock()
	return BaseAggregateRoot{
		BaseEntity: BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Version:    1,
	}
}

// IncrementVersion is called by the repository after a successful save
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// CheckVersion fails with ErrConcurrentModification when expected is set and
// differs from the loaded version. Zero skips the check.
func (a *BaseAggregateRoot) CheckVersion(expected int) error {
	if expected != 0 && expected != a.Version {
		return ErrConcurrentModification
	}
	return nil
}

// AddDomainEvent queues an event for the outbox
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events in the order they were raised
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// ClearDomainEvents drops the queue once the events are in the outbox
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.pending = nil
}
