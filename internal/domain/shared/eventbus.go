package shared

import "context"

// EventHandler reacts to lifecycle events relayed from the outbox
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types to deliver. Empty means every event.
	EventTypes() []string
}

// EventPublisher delivers events to their handlers. The outbox relay treats
// an error as a failed delivery and retries the entry later.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an EventPublisher that handlers subscribe to
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboxEventSaver writes events into the outbox inside the caller's
// transaction. tx is the repository's *gorm.DB transaction handle.
type OutboxEventSaver interface {
	SaveEvents(ctx context.Context, tx any, events ...DomainEvent) error
}
