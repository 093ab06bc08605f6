package trade

import (
	"context"
	"fmt"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/domain/trade"
	"github.com/cardshellz/echelon/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// VendorNotice is the unit of work handed to the vendor notification worker
type VendorNotice struct {
	EventID  string `json:"event_id"`
	OrderID  string `json:"order_id"`
	Number   string `json:"number"`
	VendorID string `json:"vendor_id"`
	Notice   string `json:"notice"`
	Reason   string `json:"reason,omitempty"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// VendorNoticeQueue hands notices to a background worker
type VendorNoticeQueue interface {
	EnqueueVendorNotice(ctx context.Context, notice VendorNotice) error
}

// VendorNotifier delivers a notice to the vendor (EDI, e-mail, portal).
// The delivery channel lives outside this service.
type VendorNotifier interface {
	NotifyVendor(ctx context.Context, notice VendorNotice) error
}

// VendorNotificationHandler turns VendorNotificationRequested events into
// queued vendor notices. Enqueue failures are returned so that the outbox
// relay retries the event.
type VendorNotificationHandler struct {
	queue           VendorNoticeQueue
	logger          *zap.Logger
	businessMetrics *telemetry.BusinessMetrics
}

// NewVendorNotificationHandler creates a new handler for vendor notification events
func NewVendorNotificationHandler(queue VendorNoticeQueue, logger *zap.Logger) *VendorNotificationHandler {
	return &VendorNotificationHandler{
		queue:  queue,
		logger: logger,
	}
}

// SetBusinessMetrics sets the business metrics collector
func (h *VendorNotificationHandler) SetBusinessMetrics(bm *telemetry.BusinessMetrics) {
	h.businessMetrics = bm
}

// EventTypes returns the event types this handler is interested in
func (h *VendorNotificationHandler) EventTypes() []string {
	return []string{trade.EventTypeVendorNotificationRequested}
}

// Handle processes a VendorNotificationRequestedEvent
func (h *VendorNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	requested, ok := event.(*trade.VendorNotificationRequestedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", trade.EventTypeVendorNotificationRequested),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			trade.EventTypeVendorNotificationRequested, event.EventType())
	}

	notice := VendorNotice{
		EventID:  requested.EventID().String(),
		OrderID:  requested.OrderID.String(),
		Number:   requested.Number,
		VendorID: requested.VendorID.String(),
		Notice:   string(requested.Notice),
		Reason:   requested.Reason,
		Total:    requested.Total.String(),
		Currency: string(requested.Currency),
	}
	if err := h.queue.EnqueueVendorNotice(ctx, notice); err != nil {
		h.logger.Error("failed to enqueue vendor notice",
			zap.String("order_id", notice.OrderID),
			zap.String("notice", notice.Notice),
			zap.Error(err),
		)
		return fmt.Errorf("enqueue vendor notice for %s: %w", notice.Number, err)
	}

	h.logger.Info("vendor notice enqueued",
		zap.String("order_id", notice.OrderID),
		zap.String("number", notice.Number),
		zap.String("notice", notice.Notice),
	)
	if h.businessMetrics != nil {
		h.businessMetrics.RecordVendorNotice(ctx, notice.Notice)
	}
	return nil
}

// Ensure VendorNotificationHandler implements shared.EventHandler
var _ shared.EventHandler = (*VendorNotificationHandler)(nil)

// LoggingVendorNotifier only logs notices. Used in development and when no
// vendor channel is configured.
type LoggingVendorNotifier struct {
	logger *zap.Logger
}

// NewLoggingVendorNotifier creates a new logging notifier
func NewLoggingVendorNotifier(logger *zap.Logger) *LoggingVendorNotifier {
	return &LoggingVendorNotifier{logger: logger}
}

// NotifyVendor logs the notice
func (n *LoggingVendorNotifier) NotifyVendor(ctx context.Context, notice VendorNotice) error {
	n.logger.Info("VENDOR NOTICE",
		zap.String("number", notice.Number),
		zap.String("vendor_id", notice.VendorID),
		zap.String("notice", notice.Notice),
		zap.String("reason", notice.Reason),
		zap.String("total", notice.Total+" "+notice.Currency),
	)
	return nil
}

var _ VendorNotifier = (*LoggingVendorNotifier)(nil)

// InlineNoticeQueue hands notices straight to the notifier. It stands in for
// the job queue when no worker runs, so a failed delivery fails the event
// and the outbox relay retries it.
type InlineNoticeQueue struct {
	Notifier VendorNotifier
}

// EnqueueVendorNotice delivers the notice synchronously
func (q InlineNoticeQueue) EnqueueVendorNotice(ctx context.Context, notice VendorNotice) error {
	return q.Notifier.NotifyVendor(ctx, notice)
}

var _ VendorNoticeQueue = InlineNoticeQueue{}
