// Package jobs runs background work on asynq: vendor notices are enqueued by
// the event handlers and delivered by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskTypeVendorNotify delivers one vendor notice
	TaskTypeVendorNotify = "vendor:notify"
	// QueueDefault is used when no queue is configured
	QueueDefault = "vendor"
)

// NewVendorNotifyTask encodes a notice as an asynq task
func NewVendorNotifyTask(notice tradeapp.VendorNotice, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(notice)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeVendorNotify, data, opts...), nil
}

// VendorNotifyHandler hands decoded notices to the notifier. Undecodable
// payloads are not retried; notifier errors are, by asynq's retry policy.
type VendorNotifyHandler struct {
	notifier tradeapp.VendorNotifier
	logger   *zap.Logger
}

// NewVendorNotifyHandler creates the task handler
func NewVendorNotifyHandler(notifier tradeapp.VendorNotifier, logger *zap.Logger) *VendorNotifyHandler {
	return &VendorNotifyHandler{notifier: notifier, logger: logger}
}

// ProcessTask implements asynq.Handler
func (h *VendorNotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var notice tradeapp.VendorNotice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		h.logger.Error("dropping malformed vendor notice", zap.Error(err))
		return fmt.Errorf("decode vendor notice: %v: %w", err, asynq.SkipRetry)
	}

	retried, _ := asynq.GetRetryCount(ctx)
	if err := h.notifier.NotifyVendor(ctx, notice); err != nil {
		h.logger.Warn("vendor notice delivery failed",
			zap.String("number", notice.Number),
			zap.String("notice", notice.Notice),
			zap.Int("retried", retried),
			zap.Error(err),
		)
		return err
	}
	h.logger.Info("vendor notice delivered",
		zap.String("number", notice.Number),
		zap.String("notice", notice.Notice),
	)
	return nil
}
