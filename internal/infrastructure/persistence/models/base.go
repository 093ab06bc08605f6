package models

import (
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the optimistic-locking version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ToDomainAggregateRoot rebuilds the aggregate base. Pending events are not
// persisted, so a loaded aggregate starts with none.
func (m *AggregateModel) ToDomainAggregateRoot() shared.BaseAggregateRoot {
	return shared.BaseAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		Version:    m.Version,
	}
}

// StatusHistoryModel holds the columns of an append-only audit row. Seq
// orders the rows of one aggregate.
type StatusHistoryModel struct {
	ID     uuid.UUID `gorm:"type:uuid;primary_key"`
	Seq    int       `gorm:"not null"`
	From   string    `gorm:"column:from_status;type:varchar(30);not null"`
	To     string    `gorm:"column:to_status;type:varchar(30);not null"`
	Action string    `gorm:"type:varchar(40);not null"`
	At     time.Time `gorm:"not null"`
	Actor  string    `gorm:"type:varchar(100);not null"`
	Notes  string    `gorm:"type:text"`
}

// ToDomain converts the row to a domain StatusChange
func (m *StatusHistoryModel) ToDomain() shared.StatusChange {
	return shared.StatusChange{
		From:   m.From,
		To:     m.To,
		Action: m.Action,
		At:     m.At,
		Actor:  m.Actor,
		Notes:  m.Notes,
	}
}

func statusHistoryFromDomain(seq int, c shared.StatusChange) StatusHistoryModel {
	return StatusHistoryModel{
		ID:     uuid.New(),
		Seq:    seq,
		From:   c.From,
		To:     c.To,
		Action: c.Action,
		At:     c.At,
		Actor:  c.Actor,
		Notes:  c.Notes,
	}
}
