//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/cardshellz/echelon/internal/infrastructure/migration"
	"github.com/cardshellz/echelon/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// newPostgresDB starts a disposable postgres, applies the embedded
// migrations and returns a Database opened the way the server opens it.
func newPostgresDB(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("echelon_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := NewDatabase(&config.DatabaseConfig{
		Host:         host,
		Port:         port.Int(),
		User:         "postgres",
		Password:     "postgres",
		DBName:       "echelon_test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migration.FromFS(migrations.FS, "."), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	return db
}

func TestPostgres_PurchaseOrderRoundTrip(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormPurchaseOrderRepository(db.DB)
	repo.SetOutboxEventSaver(newOutboxSaver())
	ctx := context.Background()

	order := newRepoOrder(t, "PO-PG-1", uuid.New())
	require.NoError(t, repo.Create(ctx, order))

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.True(t, order.Lines[1].UnitCost.Equal(*loaded.Lines[1].UnitCost))
	assert.Equal(t, order.Total, loaded.Total)

	err = repo.Create(ctx, newRepoOrder(t, "PO-PG-1", uuid.New()))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	var pending int64
	require.NoError(t, db.DB.Table("outbox_events").Where("status = ?", "PENDING").Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestPostgres_ConcurrentTransitions(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormPurchaseOrderRepository(db.DB)
	repo.SetOutboxEventSaver(newOutboxSaver())
	ctx := context.Background()

	order := newRepoOrder(t, "PO-PG-2", uuid.New())
	require.NoError(t, repo.Create(ctx, order))

	const writers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		stale, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		wg.Add(1)
		go func(o *trade.PurchaseOrder) {
			defer wg.Done()
			if _, err := o.ApplyTransition(trade.ActionSubmit, trade.TransitionInput{Actor: "buyer"}); err != nil {
				return
			}
			err := repo.SaveWithLock(ctx, o)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case shared.CodeOf(err) == shared.CodeConcurrentModification:
				conflicts++
			}
		}(stale)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)

	loaded, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version)
	assert.Len(t, loaded.History, 2)
}

func TestPostgres_StatusCounts(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormPurchaseOrderRepository(db.DB)
	repo.SetOutboxEventSaver(newOutboxSaver())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newRepoOrder(t, "PO-PG-3", uuid.New())))
	require.NoError(t, repo.Create(ctx, newRepoOrder(t, "PO-PG-4", uuid.New())))

	counts, err := NewStatusCounter(db.DB).CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["purchase_order"][string(trade.PurchaseOrderStatusDraft)])
}
