package shared

import (
	"context"

	"github.com/google/uuid"
)

// EntityLocker serializes operations against a single aggregate.
// Lock blocks until the lock is held or ctx is done; the returned release
// function must be called exactly once.
type EntityLocker interface {
	Lock(ctx context.Context, aggregateType string, id uuid.UUID) (release func(context.Context) error, err error)
}
