package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// WorkerConfig collects what the worker needs to start
type WorkerConfig struct {
	RedisOpt    asynq.RedisConnOpt
	Queue       string
	Concurrency int
	Logger      *zap.Logger
	Notify      *VendorNotifyHandler
}

// Worker wraps the asynq server
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker builds a worker serving vendor:notify tasks
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Notify == nil {
		return nil, errors.New("jobs: vendor notify handler is required")
	}
	if cfg.Queue == "" {
		cfg.Queue = QueueDefault
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	log := cfg.Logger
	srv := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Queue: 1},
		Logger:      newAsynqLogger(log),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if retried >= maxRetry {
				log.Error("task exhausted retries",
					zap.String("type", task.Type()), zap.Int("retried", retried), zap.Error(err))
			}
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskTypeVendorNotify, cfg.Notify)
	return &Worker{server: srv, mux: mux, logger: log}, nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight tasks
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.logger.Info("job worker started")
	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("job worker stopped")
	return nil
}

// asynqLogger adapts zap to asynq's logger interface
type asynqLogger struct {
	s *zap.SugaredLogger
}

func newAsynqLogger(l *zap.Logger) *asynqLogger {
	return &asynqLogger{s: l.Named("asynq").Sugar()}
}

func (l *asynqLogger) Debug(args ...any) { l.s.Debug(args...) }
func (l *asynqLogger) Info(args ...any)  { l.s.Info(args...) }
func (l *asynqLogger) Warn(args ...any)  { l.s.Warn(args...) }
func (l *asynqLogger) Error(args ...any) { l.s.Error(args...) }
func (l *asynqLogger) Fatal(args ...any) { l.s.Fatal(args...) }
