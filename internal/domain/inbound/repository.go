package inbound

import (
	"context"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/google/uuid"
)

// ShipmentFilter narrows shipment listings
type ShipmentFilter struct {
	shared.Filter
	Status          *ShipmentStatus
	Mode            *ShipmentMode
	PurchaseOrderID *uuid.UUID
}

// InboundShipmentRepository persists shipments with their lines, costs and history
type InboundShipmentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*InboundShipment, error)
	FindAll(ctx context.Context, filter ShipmentFilter) ([]InboundShipment, int64, error)
	Create(ctx context.Context, shipment *InboundShipment) error
	// SaveWithLock stores the shipment if its stored version still equals
	// shipment.Version, bumping the version and writing pending domain events
	// to the outbox in the same transaction. It returns
	// shared.ErrConcurrentModification when the version moved.
	SaveWithLock(ctx context.Context, shipment *InboundShipment) error
	ExistsByNumber(ctx context.Context, number string) (bool, error)
}

// SnapshotArchive stores finalized landed-cost snapshots for downstream valuation
type SnapshotArchive interface {
	Put(ctx context.Context, snapshot *LandedCostSnapshot) (location string, err error)
	Get(ctx context.Context, shipmentID uuid.UUID, revision int) (*LandedCostSnapshot, error)
}
