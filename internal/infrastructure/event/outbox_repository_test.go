package event

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var outboxNow = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection would otherwise get its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.OutboxEntryModel{}))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func seedEntry(t *testing.T, repo *GormOutboxRepository, eventType string, at time.Time) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent(eventType)
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload, at)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestGormOutboxRepository_FindDueAndClaim(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	ctx := context.Background()

	older := seedEntry(t, repo, "A", outboxNow.Add(-time.Minute))
	newer := seedEntry(t, repo, "B", outboxNow)
	future := seedEntry(t, repo, "C", outboxNow.Add(time.Hour))

	due, err := repo.FindDue(ctx, outboxNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, older.ID, due[0].ID)
	assert.Equal(t, newer.ID, due[1].ID)
	assert.JSONEq(t, string(older.Payload), string(due[0].Payload))
	assert.NotEqual(t, future.ID, due[1].ID)

	claimed, err := repo.Claim(ctx, older.ID, outboxNow)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, older.ID, outboxNow)
	require.NoError(t, err)
	assert.False(t, claimed, "a processing entry cannot be claimed twice")

	due, err = repo.FindDue(ctx, outboxNow, 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestGormOutboxRepository_ReclaimsExpiredLease(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxDB(t), WithProcessingLease(time.Minute))
	ctx := context.Background()

	entry := seedEntry(t, repo, "A", outboxNow)
	claimed, err := repo.Claim(ctx, entry.ID, outboxNow)
	require.NoError(t, err)
	require.True(t, claimed)

	// the claiming relay dies before recording the outcome
	due, err := repo.FindDue(ctx, outboxNow.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "lease still held")
	claimed, err = repo.Claim(ctx, entry.ID, outboxNow.Add(30*time.Second))
	require.NoError(t, err)
	assert.False(t, claimed)

	later := outboxNow.Add(2 * time.Minute)
	due, err = repo.FindDue(ctx, later, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, entry.ID, due[0].ID)

	claimed, err = repo.Claim(ctx, entry.ID, later)
	require.NoError(t, err)
	assert.True(t, claimed)
	claimed, err = repo.Claim(ctx, entry.ID, later)
	require.NoError(t, err)
	assert.False(t, claimed, "the new claim restarts the lease")
}

func TestGormOutboxRepository_UpdateAndCleanup(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	ctx := context.Background()

	failed := seedEntry(t, repo, "A", outboxNow)
	failed.MarkFailed("timeout", outboxNow)
	require.NoError(t, repo.Update(ctx, failed))

	due, err := repo.FindDue(ctx, outboxNow, 10)
	require.NoError(t, err)
	assert.Empty(t, due, "failed entry waits for its backoff")

	due, err = repo.FindDue(ctx, outboxNow.Add(shared.OutboxBackoff(1)), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 1, due[0].Attempts)
	assert.Equal(t, "timeout", due[0].LastError)

	sent := seedEntry(t, repo, "B", outboxNow.Add(-10*24*time.Hour))
	sent.MarkSent(outboxNow.Add(-10 * 24 * time.Hour))
	require.NoError(t, repo.Update(ctx, sent))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[shared.OutboxStatusFailed])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusSent])

	deleted, err := repo.DeleteSentBefore(ctx, outboxNow.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestGormOutboxRepository_DeadLetters(t *testing.T) {
	repo := NewGormOutboxRepository(setupOutboxDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := seedEntry(t, repo, "Dead", outboxNow.Add(time.Duration(i)*time.Minute))
		e.MaxAttempts = 1
		e.MarkFailed("vendor portal down", outboxNow.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Update(ctx, e))
	}
	live := seedEntry(t, repo, "Live", outboxNow)

	page, total, err := repo.FindDead(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.True(t, page[0].UpdatedAt.After(page[1].UpdatedAt))

	rest, _, err := repo.FindDead(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	found, err := repo.FindByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusPending, found.Status)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOutboxRepository_ClaimLostRace(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewGormOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "outbox_events" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	claimed, err := repo.Claim(context.Background(), uuid.New(), outboxNow)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOutboxRepository_SaveEmpty(t *testing.T) {
	db, mock := setupMockDB(t)
	require.NoError(t, NewGormOutboxRepository(db).Save(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxPublisher_SaveEvents(t *testing.T) {
	db := setupOutboxDB(t)
	serializer := NewEventSerializer()
	serializer.Register("A", &testEvent{})
	publisher := NewOutboxPublisher(serializer)
	publisher.SetClock(func() time.Time { return outboxNow })
	ctx := context.Background()

	ev := newTestEvent("A")
	err := db.Transaction(func(tx *gorm.DB) error {
		return publisher.SaveEvents(ctx, tx, ev)
	})
	require.NoError(t, err)

	var rows []models.OutboxEntryModel
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, ev.EventID(), rows[0].EventID)
	assert.Equal(t, shared.OutboxStatusPending, rows[0].Status)
	assert.True(t, outboxNow.Equal(rows[0].NextAttemptAt))

	t.Run("rolled back transaction leaves no entry", func(t *testing.T) {
		_ = db.Transaction(func(tx *gorm.DB) error {
			require.NoError(t, publisher.SaveEvents(ctx, tx, newTestEvent("A")))
			return assert.AnError
		})
		var n int64
		require.NoError(t, db.Model(&models.OutboxEntryModel{}).Count(&n).Error)
		assert.Equal(t, int64(1), n)
	})

	t.Run("requires a gorm transaction", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, "not a tx", newTestEvent("A"))
		assert.ErrorContains(t, err, "*gorm.DB")
	})

	t.Run("unregistered events abort the write", func(t *testing.T) {
		err := publisher.SaveEvents(ctx, db, newTestEvent("Unknown"))
		assert.ErrorContains(t, err, "unregistered")
	})
}
