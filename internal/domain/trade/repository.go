package trade

import (
	"context"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/google/uuid"
)

// PurchaseOrderFilter narrows purchase order listings
type PurchaseOrderFilter struct {
	shared.Filter
	Status   *PurchaseOrderStatus
	VendorID *uuid.UUID
}

// PurchaseOrderRepository defines the interface for purchase order persistence
type PurchaseOrderRepository interface {
	// FindByID loads the order with lines and history; shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)

	FindByNumber(ctx context.Context, number string) (*PurchaseOrder, error)

	// FindAll lists orders without their history
	FindAll(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrder, int64, error)

	// Create inserts a new order
	Create(ctx context.Context, order *PurchaseOrder) error

	// SaveWithLock updates an existing order if its stored version still equals
	// order.Version, then increments the version. Pending domain events are
	// written to the outbox in the same transaction.
	// Fails with shared.ErrConcurrentModification otherwise.
	SaveWithLock(ctx context.Context, order *PurchaseOrder) error

	ExistsByNumber(ctx context.Context, number string) (bool, error)
}
