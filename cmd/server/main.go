package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/cardshellz/echelon/internal/application/event"
	inboundapp "github.com/cardshellz/echelon/internal/application/inbound"
	tradeapp "github.com/cardshellz/echelon/internal/application/trade"
	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/cardshellz/echelon/internal/infrastructure/cache"
	"github.com/cardshellz/echelon/internal/infrastructure/config"
	"github.com/cardshellz/echelon/internal/infrastructure/event"
	"github.com/cardshellz/echelon/internal/infrastructure/jobs"
	"github.com/cardshellz/echelon/internal/infrastructure/logger"
	"github.com/cardshellz/echelon/internal/infrastructure/persistence"
	"github.com/cardshellz/echelon/internal/infrastructure/storage"
	"github.com/cardshellz/echelon/internal/infrastructure/telemetry"
	"github.com/cardshellz/echelon/internal/interfaces/http/handler"
	"github.com/cardshellz/echelon/internal/interfaces/http/middleware"
	"github.com/cardshellz/echelon/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "github.com/cardshellz/echelon/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			Echelon Inbound API
//	@version		1.0
//	@description	Purchase orders, inbound shipments and landed-cost allocation

//	@contact.name	Echelon
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	baseLog, err := logger.New(logger.FromAppConfig(cfg.Log))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() { _ = baseLog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry.ServiceVersion = version
	tel, err := startTelemetry(ctx, cfg, baseLog)
	if err != nil {
		return err
	}
	defer tel.shutdown(baseLog)
	log := tel.log

	log.Info("Starting echelon",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	meter := tel.meters.Meter("echelon")

	db, err := openDatabase(cfg, log, meter)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("database", cfg.Database.DBName))

	coord, err := cache.NewCoordination(ctx, cfg,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	if err != nil {
		return err
	}
	defer func() { _ = coord.Close() }()

	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:          meter,
		Logger:         log,
		StatusProvider: persistence.NewStatusCounter(db.DB),
	})
	if err != nil {
		return fmt.Errorf("create business metrics: %w", err)
	}
	businessMetrics.StartPeriodicCollection(ctx, 5*time.Minute)
	defer businessMetrics.Stop()

	archive, err := openArchive(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Repositories write lifecycle events to the outbox in the same transaction
	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	outboxPublisher := event.NewOutboxPublisher(serializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB, event.WithProcessingLease(cfg.Event.ProcessingLease))

	orderRepo := persistence.NewGormPurchaseOrderRepository(db.DB)
	orderRepo.SetOutboxEventSaver(outboxPublisher)
	shipmentRepo := persistence.NewGormInboundShipmentRepository(db.DB)
	shipmentRepo.SetOutboxEventSaver(outboxPublisher)

	orderService := tradeapp.NewPurchaseOrderService(orderRepo, coord.Locker, log.Named("purchase_orders"))
	orderService.SetBusinessMetrics(businessMetrics)
	shipmentService := inboundapp.NewShipmentService(shipmentRepo, orderRepo, coord.Locker, log.Named("inbound_shipments"))
	shipmentService.SetBusinessMetrics(businessMetrics)
	shipmentService.SetSnapshotArchive(archive)
	outboxService := eventapp.NewOutboxService(outboxRepo, log.Named("outbox"))

	g, gctx := errgroup.WithContext(ctx)

	// Vendor notices go through asynq when a worker is configured
	var noticeQueue tradeapp.VendorNoticeQueue = tradeapp.InlineNoticeQueue{Notifier: tradeapp.NewLoggingVendorNotifier(log)}
	if cfg.Jobs.Enabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		jobClient := jobs.NewClient(redisOpt, jobs.ClientConfig{
			Queue:     cfg.Jobs.Queue,
			MaxRetry:  cfg.Jobs.MaxRetry,
			Timeout:   cfg.Jobs.Timeout,
			Retention: cfg.Event.IdempotencyTTL,
		}, log)
		defer func() { _ = jobClient.Close() }()
		noticeQueue = jobClient

		worker, err := jobs.NewWorker(jobs.WorkerConfig{
			RedisOpt:    redisOpt,
			Queue:       cfg.Jobs.Queue,
			Concurrency: cfg.Jobs.Concurrency,
			Logger:      log,
			Notify:      jobs.NewVendorNotifyHandler(tradeapp.NewLoggingVendorNotifier(log), log),
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return worker.Run(gctx) })
	}

	bus := event.NewInMemoryEventBus(log)
	subscribeHandlers(bus, cfg, coord, log, noticeQueue, archive, businessMetrics)

	if cfg.Event.ProcessorEnabled {
		if err := bus.Start(gctx); err != nil {
			return err
		}
		defer func() { _ = bus.Stop(context.Background()) }()

		processor := event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  cfg.Event.CleanupInterval,
		}, log.Named("outbox"))
		g.Go(func() error { return processor.Run(gctx) })
	}

	if err := middleware.SetupValidator(); err != nil {
		return fmt.Errorf("register validators: %w", err)
	}

	engine, err := newEngine(cfg, log, meter)
	if err != nil {
		return err
	}

	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if coord.Client != nil {
		checks["redis"] = func(ctx context.Context) error { return coord.Client.Ping(ctx).Err() }
	}
	engine.GET("/health", handler.NewSystemHandler(version, checks).Health)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	router.NewRouter(engine, router.WithAPIVersion("v1"), router.WithLogger(log)).
		Register(
			handler.NewPurchaseOrderHandler(orderService).Routes(),
			handler.NewInboundShipmentHandler(shipmentService).Routes(),
			handler.NewIncotermHandler().Routes(),
			handler.NewOutboxHandler(outboxService).Routes(),
		).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}

type telemetryStack struct {
	log      *zap.Logger
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

// startTelemetry brings up tracing, metrics, log export and profiling. The
// returned logger also exports to the collector when log export is on.
func startTelemetry(ctx context.Context, cfg *config.Config, base *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry
	logs, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.Enabled && t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
		MinLevel:          logger.ParseLevel(cfg.Log.Level),
	}, base)
	if err != nil {
		return nil, err
	}
	s := &telemetryStack{log: logs.Bridge(base), logs: logs}

	if s.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(t), s.log); err != nil {
		return nil, err
	}
	if s.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.Enabled && t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.MetricsInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, s.log); err != nil {
		return nil, err
	}
	if s.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfigFrom(t), s.log); err != nil {
		return nil, err
	}
	if s.profiler.IsEnabled() && s.tracer.IsEnabled() {
		s.tracer.EnableSpanProfiles()
	}
	return s, nil
}

func (s *telemetryStack) shutdown(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.profiler.Stop(); err != nil {
		log.Warn("profiler shutdown", zap.Error(err))
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		log.Warn("tracer shutdown", zap.Error(err))
	}
	if err := s.meters.Shutdown(ctx); err != nil {
		log.Warn("meter shutdown", zap.Error(err))
	}
	if err := s.logs.Shutdown(ctx); err != nil {
		log.Warn("log export shutdown", zap.Error(err))
	}
}

func openDatabase(cfg *config.Config, log *zap.Logger, meter metric.Meter) (*persistence.Database, error) {
	t := cfg.Telemetry
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(t.DBSlowQueryThresh),
		logger.WithSQL(t.DBLogFullSQL),
	)

	dbMetrics, err := telemetry.NewDBMetrics(meter, t.DBSlowQueryThresh, log)
	if err != nil {
		return nil, fmt.Errorf("create db metrics: %w", err)
	}
	plugins := []gorm.Plugin{dbMetrics}
	if tracing := telemetry.DBTracingConfigFrom(t, cfg.Database.DBName); tracing.Enabled {
		plugins = append(plugins, telemetry.NewDBTracingPlugin(tracing))
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(gormLog),
		persistence.WithPlugins(plugins...),
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := dbMetrics.ObservePool(sqlDB); err != nil {
		log.Warn("connection pool metrics unavailable", zap.Error(err))
	}
	return db, nil
}

// openArchive returns the S3 snapshot archive, or an in-process one when no
// bucket is configured
func openArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) (inbound.SnapshotArchive, error) {
	if !cfg.Storage.Enabled {
		log.Warn("snapshot storage disabled, finalized snapshots are kept in memory only")
		return storage.NewMemorySnapshotArchive(), nil
	}
	archive, err := storage.NewS3SnapshotArchive(ctx, &cfg.Storage, storage.WithLogger(log.Named("storage")))
	if err != nil {
		return nil, fmt.Errorf("create snapshot archive: %w", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("snapshot archive ready", zap.String("bucket", archive.Bucket()))
	return archive, nil
}

// subscribeHandlers wires the outbox consumers. Each one is wrapped so that a
// redelivered event does not repeat its side effect.
func subscribeHandlers(
	bus *event.InMemoryEventBus,
	cfg *config.Config,
	coord *cache.Coordination,
	log *zap.Logger,
	noticeQueue tradeapp.VendorNoticeQueue,
	archive inbound.SnapshotArchive,
	businessMetrics *telemetry.BusinessMetrics,
) {
	idem := event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true})
	receiving := tradeapp.NewLoggingReceivingGateway(log.Named("receiving"))

	vendorNotices := tradeapp.NewVendorNotificationHandler(noticeQueue, log)
	vendorNotices.SetBusinessMetrics(businessMetrics)

	handlers := map[string]shared.EventHandler{
		"vendor_notification":  vendorNotices,
		"po_receiving":         tradeapp.NewReceivingRequestedHandler(receiving, log),
		"shipment_receiving":   inboundapp.NewShipmentReceivingHandler(receiving, log),
	}
	if cfg.Allocation.ArchiveSnapshots {
		handlers["landed_cost_snapshot"] = inboundapp.NewSnapshotArchiveHandler(archive, log)
	}
	for name, h := range handlers {
		bus.Subscribe(event.NewIdempotentHandler(name, h, coord.Idempotency, log, idem))
	}
}

// newEngine builds the gin engine with the shared middleware chain
func newEngine(cfg *config.Config, log *zap.Logger, meter metric.Meter) (*gin.Engine, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	profiling := middleware.DefaultProfilingConfig()
	profiling.Enabled = cfg.Telemetry.ProfilingEnabled

	engine.Use(
		middleware.RequestID(),
		middleware.Actor(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cors),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meter, log),
		middleware.ProfilingWithConfig(profiling),
	)
	return engine, nil
}
