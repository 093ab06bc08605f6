package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), time.Now()),
		Data:            "payload",
	}
}

type testHandler struct {
	name       string
	eventTypes []string
	err        error
	panicWith  any

	mu      sync.Mutex
	handled []shared.DomainEvent
}

func newTestHandler(name string, eventTypes ...string) *testHandler {
	return &testHandler{name: name, eventTypes: eventTypes}
}

func (h *testHandler) Name() string { return h.name }

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	receiving := newTestHandler("receiving", "ShipmentReceivingRequested")
	audit := newTestHandler("audit")
	bus.Subscribe(receiving)
	bus.Subscribe(audit, "ShipmentReceivingRequested", "LandedCostFinalized")

	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent("ShipmentReceivingRequested"),
		newTestEvent("LandedCostFinalized"),
		newTestEvent("Unrelated"),
	))

	assert.Equal(t, 1, receiving.count())
	assert.Equal(t, 2, audit.count())
}

func TestInMemoryEventBus_FailuresAreJoined(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))

	errArchive := errors.New("s3 unavailable")
	failing := newTestHandler("archive", "LandedCostFinalized")
	failing.err = errArchive
	panicking := newTestHandler("notify", "LandedCostFinalized")
	panicking.panicWith = "boom"
	healthy := newTestHandler("log", "LandedCostFinalized")
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent("LandedCostFinalized"))

	require.Error(t, err)
	assert.ErrorIs(t, err, errArchive)
	assert.Contains(t, err.Error(), "handler notify panicked: boom")
	assert.Equal(t, 1, healthy.count(), "later handlers still run")
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler("h", "A")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("A")))
	assert.Zero(t, h.count())
}

func TestInMemoryEventBus_StartStop(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	assert.True(t, bus.running.Load())
	require.NoError(t, bus.Stop(context.Background()))
	assert.False(t, bus.running.Load())
}
