package event

import (
	"context"
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	infraevent "github.com/cardshellz/echelon/internal/infrastructure/event"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var serviceNow = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

type noticeEvent struct {
	shared.BaseDomainEvent
}

func newOutboxService(t *testing.T) (*OutboxService, *infraevent.GormOutboxRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))

	repo := infraevent.NewGormOutboxRepository(db)
	svc := NewOutboxService(repo, zap.NewNop())
	svc.SetClock(func() time.Time { return serviceNow })
	return svc, repo
}

func seed(t *testing.T, repo *infraevent.GormOutboxRepository, dead bool) *shared.OutboxEntry {
	t.Helper()
	ev := &noticeEvent{BaseDomainEvent: shared.NewBaseDomainEvent(
		"VendorNotificationRequested", "PurchaseOrder", uuid.New(), serviceNow.Add(-time.Hour))}
	entry := shared.NewOutboxEntry(ev, []byte(`{}`), serviceNow.Add(-time.Hour))
	require.NoError(t, repo.Save(context.Background(), entry))
	if dead {
		entry.MaxAttempts = 1
		entry.MarkFailed("queue unavailable", serviceNow.Add(-time.Minute))
		require.NoError(t, repo.Update(context.Background(), entry))
	}
	return entry
}

func TestOutboxService_GetDeadLetterEntries(t *testing.T) {
	svc, repo := newOutboxService(t)
	for i := 0; i < 3; i++ {
		seed(t, repo, true)
	}
	seed(t, repo, false)

	result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)
	assert.Equal(t, 2, result.TotalPages)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "DEAD", result.Entries[0].Status)
	assert.Equal(t, "queue unavailable", result.Entries[0].LastError)

	t.Run("clamps paging", func(t *testing.T) {
		result, err := svc.GetDeadLetterEntries(context.Background(), OutboxFilter{PageSize: 500})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Page)
		assert.Equal(t, 100, result.PageSize)
	})
}

func TestOutboxService_RetryDeadEntry(t *testing.T) {
	svc, repo := newOutboxService(t)
	ctx := context.Background()

	t.Run("requeues the entry", func(t *testing.T) {
		dead := seed(t, repo, true)

		dto, err := svc.RetryDeadEntry(ctx, dead.ID)
		require.NoError(t, err)
		assert.Equal(t, "PENDING", dto.Status)
		assert.Zero(t, dto.Attempts)

		due, err := repo.FindDue(ctx, serviceNow, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, dead.ID, due[0].ID)
	})

	t.Run("refuses an entry that is not dead", func(t *testing.T) {
		live := seed(t, repo, false)

		_, err := svc.RetryDeadEntry(ctx, live.ID)
		assert.Equal(t, shared.CodeInvalidState, shared.CodeOf(err))
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := svc.RetryDeadEntry(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestOutboxService_RetryAllAndStats(t *testing.T) {
	svc, repo := newOutboxService(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		seed(t, repo, true)
	}
	seed(t, repo, false)

	stats, err := svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Dead)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(5), stats.Total)

	n, err := svc.RetryAllDeadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	stats, err = svc.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Dead)
	assert.Equal(t, int64(5), stats.Pending)
}

func TestOutboxService_GetEntry(t *testing.T) {
	svc, repo := newOutboxService(t)
	entry := seed(t, repo, false)

	dto, err := svc.GetEntry(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.EventID, dto.EventID)
	assert.Equal(t, "PurchaseOrder", dto.AggregateType)
}
