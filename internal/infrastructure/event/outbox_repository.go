package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultProcessingLease is how long a claimed entry may stay PROCESSING
// before another relay may take it over
const DefaultProcessingLease = 5 * time.Minute

// GormOutboxRepository implements shared.OutboxRepository using GORM
type GormOutboxRepository struct {
	db    *gorm.DB
	lease time.Duration
}

// OutboxRepositoryOption configures a GormOutboxRepository
type OutboxRepositoryOption func(*GormOutboxRepository)

// WithProcessingLease overrides DefaultProcessingLease. Non-positive values are ignored.
func WithProcessingLease(d time.Duration) OutboxRepositoryOption {
	return func(r *GormOutboxRepository) {
		if d > 0 {
			r.lease = d
		}
	}
}

// NewGormOutboxRepository creates a new GORM-based outbox repository
func NewGormOutboxRepository(db *gorm.DB, opts ...OutboxRepositoryOption) *GormOutboxRepository {
	r := &GormOutboxRepository{db: db, lease: DefaultProcessingLease}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var claimableStatuses = []shared.OutboxStatus{shared.OutboxStatusPending, shared.OutboxStatusFailed}

// claimable matches due PENDING/FAILED rows and PROCESSING rows whose lease
// ran out, which is what a relay that died mid-delivery leaves behind.
func (r *GormOutboxRepository) claimable(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Where(
		r.db.Where("status IN ? AND next_attempt_at <= ?", claimableStatuses, now).
			Or("status = ? AND updated_at <= ?", shared.OutboxStatusProcessing, now.Add(-r.lease)),
	)
}

// Save inserts one or more entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEntryModelFromDomain(e)
	}
	if err := r.db.WithContext(ctx).Create(rows).Error; err != nil {
		return fmt.Errorf("insert outbox entries: %w", err)
	}
	return nil
}

// FindDue returns entries whose next attempt is due, oldest first. Stale
// PROCESSING entries are included.
func (r *GormOutboxRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.claimable(r.db.WithContext(ctx), now).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Claim moves a due entry to PROCESSING with a conditional update and starts
// its lease. When several relays race for the same row only one update matches.
func (r *GormOutboxRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.claimable(r.db.WithContext(ctx).Model(&models.OutboxEntryModel{}).Where("id = ?", id), now).
		Updates(map[string]any{
			"status":     shared.OutboxStatusProcessing,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update writes back the delivery state of an entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	return r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("id = ?", entry.ID).
		Updates(map[string]any{
			"status":          entry.Status,
			"attempts":        entry.Attempts,
			"last_error":      entry.LastError,
			"next_attempt_at": entry.NextAttemptAt,
			"sent_at":         entry.SentAt,
			"updated_at":      entry.UpdatedAt,
		}).Error
}

// DeleteSentBefore removes delivered entries older than before
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return result.RowsAffected, result.Error
}

// FindDead pages through dead-lettered entries, most recently failed first
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ?", shared.OutboxStatusDead)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, total, nil
}

// FindByID loads one entry; a missing row is NOT_FOUND
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEntryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("outbox entry %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

// CountByStatus returns the number of entries per status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var results []struct {
		Status shared.OutboxStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(results))
	for _, row := range results {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
