package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPurchaseOrderRepository implements PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db          *gorm.DB
	outboxSaver shared.OutboxEventSaver // optional, for transactional outbox pattern
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// SetOutboxEventSaver sets the outbox event saver for transactional event publishing
func (r *GormPurchaseOrderRepository) SetOutboxEventSaver(saver shared.OutboxEventSaver) {
	r.outboxSaver = saver
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC")
}

func orderedHistory(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}

// FindByID finds a purchase order by its ID
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByNumber finds a purchase order by its PO number
func (r *GormPurchaseOrderRepository) FindByNumber(ctx context.Context, number string) (*trade.PurchaseOrder, error) {
	return r.findOne(ctx, "number = ?", number)
}

func (r *GormPurchaseOrderRepository) findOne(ctx context.Context, query string, arg any) (*trade.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Preload("History", orderedHistory).
		Where(query, arg).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists purchase orders with their lines, returning the page and the total count
func (r *GormPurchaseOrderRepository) FindAll(ctx context.Context, filter trade.PurchaseOrderFilter) ([]trade.PurchaseOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.VendorID != nil {
		query = query.Where("vendor_id = ?", *filter.VendorID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("LOWER(number) LIKE LOWER(?) OR LOWER(vendor_reference) LIKE LOWER(?)", pattern, pattern)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orderModels []models.PurchaseOrderModel
	if err := purchaseOrderSort.apply(query, filter.Filter).
		Preload("Lines", orderedLines).
		Find(&orderModels).Error; err != nil {
		return nil, 0, err
	}
	orders := make([]trade.PurchaseOrder, len(orderModels))
	for i := range orderModels {
		orders[i] = *orderModels[i].ToDomain()
	}
	return orders, total, nil
}

// Create inserts a new purchase order together with its lines, history and pending events
func (r *GormPurchaseOrderRepository) Create(ctx context.Context, order *trade.PurchaseOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.PurchaseOrderModelFromDomain(order)
		if err := tx.Omit("Lines", "History").Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return shared.NewDomainError(shared.CodeAlreadyExists, fmt.Sprintf("purchase order %s already exists", order.Number))
			}
			return err
		}
		if len(model.Lines) > 0 {
			if err := tx.Create(&model.Lines).Error; err != nil {
				return err
			}
		}
		if err := r.appendHistory(tx, order, 0); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, order)
	})
	if err != nil {
		return err
	}
	order.ClearDomainEvents()
	return nil
}

// SaveWithLock saves with optimistic locking (version check)
func (r *GormPurchaseOrderRepository) SaveWithLock(ctx context.Context, order *trade.PurchaseOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current struct{ Version int }
		if err := tx.Model(&models.PurchaseOrderModel{}).
			Select("version").
			Where("id = ?", order.ID).
			Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if current.Version != order.Version {
			return shared.ErrConcurrentModification
		}

		model := models.PurchaseOrderModelFromDomain(order)
		model.Version = current.Version + 1
		result := tx.Model(&models.PurchaseOrderModel{}).
			Where("id = ? AND version = ?", order.ID, current.Version).
			Updates(model.HeaderColumns())
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrentModification
		}

		lineIDs := make([]uuid.UUID, len(model.Lines))
		for i := range model.Lines {
			lineIDs[i] = model.Lines[i].ID
		}
		del := tx.Where("purchase_order_id = ?", order.ID)
		if len(lineIDs) > 0 {
			del = del.Where("id NOT IN ?", lineIDs)
		}
		if err := del.Delete(&models.PurchaseOrderLineModel{}).Error; err != nil {
			return err
		}
		for i := range model.Lines {
			if err := tx.Save(&model.Lines[i]).Error; err != nil {
				return err
			}
		}

		var stored int64
		if err := tx.Model(&models.PurchaseOrderHistoryModel{}).
			Where("purchase_order_id = ?", order.ID).
			Count(&stored).Error; err != nil {
			return err
		}
		if err := r.appendHistory(tx, order, int(stored)); err != nil {
			return err
		}
		return r.saveEvents(ctx, tx, order)
	})
	if err != nil {
		return err
	}
	order.IncrementVersion()
	order.ClearDomainEvents()
	return nil
}

// ExistsByNumber checks whether a PO number is taken
func (r *GormPurchaseOrderRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.PurchaseOrderModel{}).
		Where("number = ?", number).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// appendHistory inserts the audit entries past the stored count
func (r *GormPurchaseOrderRepository) appendHistory(tx *gorm.DB, order *trade.PurchaseOrder, stored int) error {
	if stored >= len(order.History) {
		return nil
	}
	rows := models.PurchaseOrderHistoryFrom(order.ID, stored, order.History[stored:])
	return tx.Create(&rows).Error
}

func (r *GormPurchaseOrderRepository) saveEvents(ctx context.Context, tx *gorm.DB, order *trade.PurchaseOrder) error {
	events := order.GetDomainEvents()
	if r.outboxSaver == nil || len(events) == 0 {
		return nil
	}
	if err := r.outboxSaver.SaveEvents(ctx, tx, events...); err != nil {
		return fmt.Errorf("failed to save events to outbox: %w", err)
	}
	return nil
}

var _ trade.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
