package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubEvent struct {
	BaseDomainEvent
}

func newStubEvent() *stubEvent {
	return &stubEvent{BaseDomainEvent: NewBaseDomainEvent("StubHappened", "Stub", uuid.New(), time.Now())}
}

func TestNewOutboxEntry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ev := newStubEvent()

	entry := NewOutboxEntry(ev, []byte(`{}`), now)

	assert.Equal(t, ev.EventID(), entry.EventID)
	assert.Equal(t, "StubHappened", entry.EventType)
	assert.Equal(t, "Stub", entry.AggregateType)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, now, entry.NextAttemptAt)
	assert.Equal(t, DefaultOutboxMaxAttempts, entry.MaxAttempts)
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("schedules retry with backoff", func(t *testing.T) {
		entry := NewOutboxEntry(newStubEvent(), nil, now)
		entry.MarkFailed("boom", now)

		assert.Equal(t, OutboxStatusFailed, entry.Status)
		assert.Equal(t, 1, entry.Attempts)
		assert.Equal(t, "boom", entry.LastError)
		assert.Equal(t, now.Add(DefaultOutboxBackoff), entry.NextAttemptAt)
	})

	t.Run("dead letters after max attempts", func(t *testing.T) {
		entry := NewOutboxEntry(newStubEvent(), nil, now)
		entry.MaxAttempts = 2
		entry.MarkFailed("one", now)
		entry.MarkFailed("two", now)

		assert.True(t, entry.IsDead())
		assert.Equal(t, 2, entry.Attempts)
	})
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	now := time.Now()
	entry := NewOutboxEntry(newStubEvent(), nil, now)
	entry.MarkFailed("transient", now)
	entry.MarkSent(now)

	assert.Equal(t, OutboxStatusSent, entry.Status)
	assert.NotNil(t, entry.SentAt)
	assert.Empty(t, entry.LastError)
}

func TestOutboxEntry_ResetForRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)

	t.Run("requeues a dead entry", func(t *testing.T) {
		entry := NewOutboxEntry(newStubEvent(), nil, now)
		entry.MaxAttempts = 1
		entry.MarkFailed("gone", now)
		assert.True(t, entry.IsDead())

		assert.NoError(t, entry.ResetForRetry(later))
		assert.Equal(t, OutboxStatusPending, entry.Status)
		assert.Zero(t, entry.Attempts)
		assert.Empty(t, entry.LastError)
		assert.Equal(t, later, entry.NextAttemptAt)
	})

	t.Run("refuses live entries", func(t *testing.T) {
		entry := NewOutboxEntry(newStubEvent(), nil, now)

		err := entry.ResetForRetry(later)
		assert.Equal(t, CodeInvalidState, CodeOf(err))
		assert.Equal(t, OutboxStatusPending, entry.Status)
	})
}

func TestOutboxBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{20, 10 * time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutboxBackoff(tt.attempt), "attempt %d", tt.attempt)
	}
}
