package persistence

import (
	"context"
	"fmt"

	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/cardshellz/echelon/internal/infrastructure/telemetry"
	"gorm.io/gorm"
)

const (
	entityPurchaseOrder   = "purchase_order"
	entityInboundShipment = "inbound_shipment"
)

// StatusCounter feeds the open-document gauges with one grouped count per
// aggregate table
type StatusCounter struct {
	db *gorm.DB
}

// NewStatusCounter creates a new StatusCounter
func NewStatusCounter(db *gorm.DB) *StatusCounter {
	return &StatusCounter{db: db}
}

type statusCount struct {
	Status string
	Count  int64
}

// CountByStatus returns counts keyed by entity and then by status
func (s *StatusCounter) CountByStatus(ctx context.Context) (map[string]map[string]int64, error) {
	out := make(map[string]map[string]int64, 2)
	for entity, model := range map[string]any{
		entityPurchaseOrder:   &models.PurchaseOrderModel{},
		entityInboundShipment: &models.InboundShipmentModel{},
	} {
		var rows []statusCount
		err := s.db.WithContext(ctx).
			Model(model).
			Select("status, count(*) as count").
			Group("status").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("count %s by status: %w", entity, err)
		}
		counts := make(map[string]int64, len(rows))
		for _, r := range rows {
			counts[r.Status] = r.Count
		}
		out[entity] = counts
	}
	return out, nil
}

var _ telemetry.StatusCountProvider = (*StatusCounter)(nil)
