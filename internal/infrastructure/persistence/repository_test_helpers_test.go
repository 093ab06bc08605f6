package persistence

import (
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/infrastructure/event"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var repoNow = time.Date(2026, 8, 3, 10, 0, 0, 0, time.UTC)

func repoClock() time.Time { return repoNow }

// setupTestDB opens an in-memory sqlite database with every aggregate table
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.PurchaseOrderModel{},
		&models.PurchaseOrderLineModel{},
		&models.PurchaseOrderHistoryModel{},
		&models.InboundShipmentModel{},
		&models.ShipmentLineModel{},
		&models.ShipmentCostModel{},
		&models.ShipmentHistoryModel{},
		&models.OutboxEntryModel{},
	))
	return db
}

func newOutboxSaver() *event.OutboxPublisher {
	p := event.NewOutboxPublisher(event.NewEventSerializer())
	p.SetClock(repoClock)
	return p
}

// outboxTypes returns the event types written to the outbox, oldest first
func outboxTypes(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var types []string
	require.NoError(t, db.Model(&models.OutboxEntryModel{}).
		Order("created_at ASC").
		Pluck("event_type", &types).Error)
	return types
}
