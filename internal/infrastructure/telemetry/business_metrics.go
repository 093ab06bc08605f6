// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks purchasing and inbound activity: lifecycle
// transitions, guard rejections, allocation runs and open document counts.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	transitionsTotal     *Counter
	rejectionsTotal      *Counter
	allocationRunsTotal  *Counter
	allocatedCentsTotal  *Counter
	allocationDuration   *Histogram
	snapshotsFinalized   *Counter
	vendorNoticesEnqueue *Counter

	// Gauge metrics (point-in-time values)
	documentsByStatus *Gauge

	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	statusProvider StatusCountProvider
}

// StatusCountProvider reports how many documents sit in each lifecycle status.
// It keeps the telemetry layer independent of the domain packages.
type StatusCountProvider interface {
	// CountByStatus returns counts keyed by entity ("purchase_order",
	// "inbound_shipment") and then by status
	CountByStatus(ctx context.Context) (map[string]map[string]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StatusProvider  StatusCountProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:          cfg.Meter,
		logger:         logger,
		stopChan:       make(chan struct{}),
		statusProvider: cfg.StatusProvider,
	}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&bm.transitionsTotal, "echelon_lifecycle_transitions_total", "Lifecycle actions applied", "{transitions}"},
		{&bm.rejectionsTotal, "echelon_lifecycle_rejections_total", "Lifecycle actions refused by the state table or a guard", "{rejections}"},
		{&bm.allocationRunsTotal, "echelon_allocation_runs_total", "Landed-cost allocation runs", "{runs}"},
		{&bm.allocatedCentsTotal, "echelon_allocated_amount_total", "Shipment cost allocated to lines, in cents", "{cents}"},
		{&bm.snapshotsFinalized, "echelon_landed_cost_snapshots_total", "Landed-cost snapshots finalized", "{snapshots}"},
		{&bm.vendorNoticesEnqueue, "echelon_vendor_notices_total", "Vendor notifications enqueued", "{notices}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	bm.allocationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "echelon_allocation_duration_seconds",
		Description: "Time spent in one allocation run",
		Unit:        "s",
		Boundaries:  SmallDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	bm.documentsByStatus, err = NewGauge(
		cfg.Meter,
		"echelon_documents_by_status",
		"Purchase orders and shipments currently in each status",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Lifecycle Metrics
// =============================================================================

// Entity names used as the entity attribute
const (
	EntityPurchaseOrder   = "purchase_order"
	EntityInboundShipment = "inbound_shipment"
)

// RecordTransition records an applied lifecycle action
func (bm *BusinessMetrics) RecordTransition(ctx context.Context, entity, action, from, to string) {
	bm.transitionsTotal.Inc(ctx,
		AttrEntity.String(entity),
		AttrAction.String(action),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

// RecordRejection records an action refused with an error code such as
// INVALID_TRANSITION or NOT_READY_TO_FINALIZE.
func (bm *BusinessMetrics) RecordRejection(ctx context.Context, entity, action, code string) {
	bm.rejectionsTotal.Inc(ctx,
		AttrEntity.String(entity),
		AttrAction.String(action),
		AttrErrorCode.String(code),
	)
}

// =============================================================================
// Allocation Metrics
// =============================================================================

// AllocationOutcome labels an allocation run
type AllocationOutcome string

const (
	AllocationOutcomeSuccess AllocationOutcome = "success"
	AllocationOutcomeNoBasis AllocationOutcome = "no_basis"
	AllocationOutcomeFailed  AllocationOutcome = "failed"
)

// RecordAllocationRun records one allocation run with its duration and, on
// success, the number of cents spread over lines.
func (bm *BusinessMetrics) RecordAllocationRun(ctx context.Context, mode string, outcome AllocationOutcome, d time.Duration, allocatedCents int64) {
	attrs := []attribute.KeyValue{
		AttrShipmentMode.String(mode),
		AttrOutcome.String(string(outcome)),
	}
	bm.allocationRunsTotal.Inc(ctx, attrs...)
	bm.allocationDuration.RecordDuration(ctx, d, attrs...)
	if outcome == AllocationOutcomeSuccess && allocatedCents > 0 {
		bm.allocatedCentsTotal.Add(ctx, allocatedCents, AttrShipmentMode.String(mode))
	}
}

// RecordSnapshotFinalized records a finalized landed-cost snapshot
func (bm *BusinessMetrics) RecordSnapshotFinalized(ctx context.Context, mode string) {
	bm.snapshotsFinalized.Inc(ctx, AttrShipmentMode.String(mode))
}

// RecordVendorNotice records an enqueued vendor notification
func (bm *BusinessMetrics) RecordVendorNotice(ctx context.Context, notice string) {
	bm.vendorNoticesEnqueue.Inc(ctx, AttrNotice.String(notice))
}

// RecordDocumentsByStatus records the number of documents in one status
func (bm *BusinessMetrics) RecordDocumentsByStatus(ctx context.Context, entity, status string, count int64) {
	bm.documentsByStatus.Record(ctx, count,
		AttrEntity.String(entity),
		AttrStatus.String(status),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// StartPeriodicCollection starts periodic collection of gauge metrics.
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, interval)
	})
}

func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	bm.collectStatusCounts(ctx)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectStatusCounts(ctx)
		}
	}
}

func (bm *BusinessMetrics) collectStatusCounts(ctx context.Context) {
	if bm.statusProvider == nil {
		bm.logger.Debug("No status provider configured, skipping document metrics collection")
		return
	}

	counts, err := bm.statusProvider.CountByStatus(ctx)
	if err != nil {
		bm.logger.Warn("Failed to count documents by status", zap.Error(err))
		return
	}
	for entity, byStatus := range counts {
		for status, n := range byStatus {
			bm.RecordDocumentsByStatus(ctx, entity, status, n)
		}
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
