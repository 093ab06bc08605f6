package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormInboundShipmentRepository implements InboundShipmentRepository using GORM
type GormInboundShipmentRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver
}

// NewGormInboundShipmentRepository creates a new GormInboundShipmentRepository
func NewGormInboundShipmentRepository(db *gorm.DB) *GormInboundShipmentRepository {
	return &GormInboundShipmentRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormInboundShipmentRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

func orderedCosts(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

// FindByID loads a shipment with lines, costs and history
func (r *GormInboundShipmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*inbound.InboundShipment, error) {
	var model models.InboundShipmentModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Preload("Costs", orderedCosts).
		Preload("History", orderedHistory).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists shipments with lines and costs. History is not loaded.
func (r *GormInboundShipmentRepository) FindAll(ctx context.Context, filter inbound.ShipmentFilter) ([]inbound.InboundShipment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InboundShipmentModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Mode != nil {
		query = query.Where("mode = ?", *filter.Mode)
	}
	if filter.PurchaseOrderID != nil {
		query = query.Where("id IN (?)",
			r.db.Model(&models.ShipmentLineModel{}).
				Select("shipment_id").
				Where("purchase_order_id = ?", *filter.PurchaseOrderID))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"LOWER(number) LIKE LOWER(?) OR LOWER(container_number) LIKE LOWER(?) OR LOWER(bill_of_lading) LIKE LOWER(?) OR LOWER(tracking_number) LIKE LOWER(?)",
			pattern, pattern, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shipmentModels []models.InboundShipmentModel
	if err := shipmentSort.apply(query, filter.Filter).
		Preload("Lines", orderedLines).
		Preload("Costs", orderedCosts).
		Find(&shipmentModels).Error; err != nil {
		return nil, 0, err
	}
	shipments := make([]inbound.InboundShipment, len(shipmentModels))
	for i := range shipmentModels {
		shipments[i] = *shipmentModels[i].ToDomain()
	}
	return shipments, total, nil
}

// Create inserts a new shipment with its children and pending events
func (r *GormInboundShipmentRepository) Create(ctx context.Context, shipment *inbound.InboundShipment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.InboundShipmentModelFromDomain(shipment)
		if err := tx.Omit("Lines", "Costs", "History").Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("shipment %s already exists", shipment.Number))
			}
			return err
		}
		if len(model.Lines) > 0 {
			if err := tx.Create(&model.Lines).Error; err != nil {
				return err
			}
		}
		if len(model.Costs) > 0 {
			if err := tx.Create(&model.Costs).Error; err != nil {
				return err
			}
		}
		if err := r.appendHistory(tx, shipment, 0); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, shipment)
	})
	if err != nil {
		return err
	}
	shipment.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormInboundShipmentRepository) SaveWithLock(ctx context.Context, shipment *inbound.InboundShipment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current struct{ Version int }
		if err := tx.Model(&models.InboundShipmentModel{}).
			Select("version").
			Where("id = ?", shipment.ID).
			Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if current.Version != shipment.Version {
			return shared.ErrConcurrentModification
		}

		model := models.InboundShipmentModelFromDomain(shipment)
		model.Version = current.Version + 1
		columns, err := model.HeaderColumns()
		if err != nil {
			return fmt.Errorf("encode allocation bases: %w", err)
		}
		result := tx.Model(&models.InboundShipmentModel{}).
			Where("id = ? AND version = ?", shipment.ID, current.Version).
			Updates(columns)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrentModification
		}

		if err := replaceChildren(tx, shipment.ID, model.Lines, func(m *models.ShipmentLineModel) uuid.UUID { return m.ID }); err != nil {
			return fmt.Errorf("save shipment lines: %w", err)
		}
		if err := replaceChildren(tx, shipment.ID, model.Costs, func(m *models.ShipmentCostModel) uuid.UUID { return m.ID }); err != nil {
			return fmt.Errorf("save shipment costs: %w", err)
		}

		var stored int64
		if err := tx.Model(&models.ShipmentHistoryModel{}).
			Where("shipment_id = ?", shipment.ID).
			Count(&stored).Error; err != nil {
			return err
		}
		if err := r.appendHistory(tx, shipment, int(stored)); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, shipment)
	})
	if err != nil {
		return err
	}
	shipment.IncrementVersion()
	shipment.ClearDomainEvents()
	return nil
}

// replaceChildren deletes the owner's rows missing from rows, then upserts rows
func replaceChildren[T any](tx *gorm.DB, shipmentID uuid.UUID, rows []T, idOf func(*T) uuid.UUID) error {
	ids := make([]uuid.UUID, len(rows))
	for i := range rows {
		ids[i] = idOf(&rows[i])
	}
	del := tx.Where("shipment_id = ?", shipmentID)
	if len(ids) > 0 {
		del = del.Where("id NOT IN ?", ids)
	}
	var zero T
	if err := del.Delete(&zero).Error; err != nil {
		return err
	}
	for i := range rows {
		if err := tx.Save(&rows[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// ExistsByNumber checks whether a shipment number is taken
func (r *GormInboundShipmentRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InboundShipmentModel{}).
		Where("number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormInboundShipmentRepository) appendHistory(tx *gorm.DB, shipment *inbound.InboundShipment, stored int) error {
	if stored >= len(shipment.History) {
		return nil
	}
	rows := models.ShipmentHistoryFrom(shipment.ID, stored, shipment.History[stored:])
	return tx.Create(&rows).Error
}

func (r *GormInboundShipmentRepository) saveEvents(ctx context.Context, tx *gorm.DB, shipment *inbound.InboundShipment) error {
	events := shipment.GetDomainEvents()
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

var _ inbound.InboundShipmentRepository = (*GormInboundShipmentRepository)(nil)
