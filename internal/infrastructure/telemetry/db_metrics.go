package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dbMetricsStartKey = "echelon:db_metrics_start"

// DBMetrics records query latency per operation and table through GORM
// callbacks, and observes connection pool usage on collection.
type DBMetrics struct {
	meter          metric.Meter
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter
	slowThreshold  time.Duration
	logger         *zap.Logger
}

// NewDBMetrics creates the query instruments. slowThreshold defaults to 200ms.
func NewDBMetrics(meter metric.Meter, slowThreshold time.Duration, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = 200 * time.Millisecond
	}
	m := &DBMetrics{meter: meter, slowThreshold: slowThreshold, logger: logger}

	var err error
	if m.queryTotal, err = NewCounter(meter, "echelon_db_queries_total", "Database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "echelon_db_slow_queries_total", "Queries slower than the slow threshold", "{query}"); err != nil {
		return nil, err
	}
	m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "echelon_db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ObservePool reports sql.DB pool statistics each time metrics are collected
func (m *DBMetrics) ObservePool(sqlDB *sql.DB) error {
	if sqlDB == nil {
		return errors.New("db metrics: sql.DB is required")
	}
	conns, err := m.meter.Int64ObservableGauge("echelon_db_pool_connections",
		metric.WithDescription("Connections in the pool by state"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	maxOpen, err := m.meter.Int64ObservableGauge("echelon_db_pool_connections_max",
		metric.WithDescription("Maximum open connections"), metric.WithUnit("{connection}"))
	if err != nil {
		return err
	}
	waits, err := m.meter.Int64ObservableCounter("echelon_db_pool_wait_total",
		metric.WithDescription("Connections waited for"), metric.WithUnit("{wait}"))
	if err != nil {
		return err
	}
	_, err = m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := sqlDB.Stats()
		o.ObserveInt64(conns, int64(s.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(conns, int64(s.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(maxOpen, int64(s.MaxOpenConnections))
		o.ObserveInt64(waits, s.WaitCount)
		return nil
	}, conns, maxOpen, waits)
	return err
}

// RecordQuery records one finished query
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, d time.Duration, err error) {
	attrs := []attribute.KeyValue{AttrDBOperation.String(operation), AttrDBTable.String(table)}
	m.queryTotal.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, d, attrs...)
	if d >= m.slowThreshold {
		m.slowQueryTotal.Inc(ctx, attrs...)
		m.logger.Warn("slow query",
			zap.String("operation", operation),
			zap.String("table", table),
			zap.Duration("duration", d),
			zap.Error(err),
		)
	}
}

// Name implements gorm.Plugin
func (m *DBMetrics) Name() string {
	return "echelon:db_metrics"
}

// Initialize implements gorm.Plugin by timing every processor
func (m *DBMetrics) Initialize(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(dbMetricsStartKey, time.Now())
	}
	after := func(op string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			start, ok := tx.InstanceGet(dbMetricsStartKey)
			if !ok {
				return
			}
			operation := op
			if operation == "" {
				operation = detectOperationType(tx.Statement.SQL.String())
			}
			ctx := tx.Statement.Context
			if ctx == nil {
				ctx = context.Background()
			}
			m.RecordQuery(ctx, operation, tx.Statement.Table, time.Since(start.(time.Time)), tx.Error)
		}
	}

	cb := db.Callback()
	steps := []struct {
		name string
		err  error
	}{
		{"create", cb.Create().Before("gorm:create").Register("db_metrics:before_create", before)},
		{"create", cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT"))},
		{"query", cb.Query().Before("gorm:query").Register("db_metrics:before_query", before)},
		{"query", cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT"))},
		{"update", cb.Update().Before("gorm:update").Register("db_metrics:before_update", before)},
		{"update", cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE"))},
		{"delete", cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", before)},
		{"delete", cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE"))},
		{"row", cb.Row().Before("gorm:row").Register("db_metrics:before_row", before)},
		{"row", cb.Row().After("gorm:row").Register("db_metrics:after_row", after(""))},
		{"raw", cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", before)},
		{"raw", cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", after(""))},
	}
	for _, st := range steps {
		if st.err != nil {
			return fmt.Errorf("register %s callback: %w", st.name, st.err)
		}
	}
	return nil
}

func detectOperationType(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "OTHER"
	}
	switch op := strings.ToUpper(fields[0]); op {
	case "SELECT", "INSERT", "UPDATE", "DELETE":
		return op
	default:
		return "OTHER"
	}
}
