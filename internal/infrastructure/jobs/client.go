package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ClientConfig holds enqueue defaults
type ClientConfig struct {
	Queue    string
	MaxRetry int
	Timeout  time.Duration
	// Retention keeps completed task ids around so a redelivered event
	// cannot enqueue the same notice twice within the window
	Retention time.Duration
}

// Client enqueues vendor notices
type Client struct {
	client *asynq.Client
	cfg    ClientConfig
	logger *zap.Logger
}

// NewClient constructs a client on the given redis connection
func NewClient(redisOpt asynq.RedisConnOpt, cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.Queue == "" {
		cfg.Queue = QueueDefault
	}
	return &Client{client: asynq.NewClient(redisOpt), cfg: cfg, logger: logger}
}

// EnqueueVendorNotice queues the notice. The task id is the originating event
// id, so re-enqueueing the same event is a no-op.
func (c *Client) EnqueueVendorNotice(ctx context.Context, notice tradeapp.VendorNotice) error {
	opts := []asynq.Option{asynq.Queue(c.cfg.Queue)}
	if notice.EventID != "" {
		opts = append(opts, asynq.TaskID(notice.EventID))
	}
	if c.cfg.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.cfg.MaxRetry))
	}
	if c.cfg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(c.cfg.Timeout))
	}
	if c.cfg.Retention > 0 {
		opts = append(opts, asynq.Retention(c.cfg.Retention))
	}

	task, err := NewVendorNotifyTask(notice, opts...)
	if err != nil {
		return fmt.Errorf("build vendor notice task: %w", err)
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug("vendor notice already queued", zap.String("event_id", notice.EventID))
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Debug("vendor notice queued",
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

// Close releases client resources
func (c *Client) Close() error {
	return c.client.Close()
}

var _ tradeapp.VendorNoticeQueue = (*Client)(nil)
