package app

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"parkgate/internal/bus"
	"parkgate/internal/cache"
	"parkgate/internal/config"
	"parkgate/internal/db"
	httpserver "parkgate/internal/http"
	"parkgate/internal/http/handlers"
	"parkgate/internal/http/middleware"
	"parkgate/internal/outbox"
	"parkgate/internal/repository"
	"parkgate/internal/repository/memory"
	"parkgate/internal/repository/postgres"
	"parkgate/internal/service"
	"parkgate/internal/ws"
)

// App wires the parkgate dependency graph.
type App struct {
	server      *httpserver.Server
	eventBus    *bus.Bus
	dispatcher  *outbox.Dispatcher
	sweeper     *cron.Cron
	sqlDB       *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	var (
		sessionStore repository.SessionStore
		slotStore    repository.SlotStore
		invoiceStore repository.InvoiceStore
		outboxStore  repository.OutboxStore
		sqlDB        *sql.DB
	)
	if cfg.Database.DSN != "" {
		pool, err := db.NewPostgres(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB = pool
		sessionStore = postgres.NewSessionStore(pool)
		slotStore = postgres.NewSlotStore(pool)
		invoiceStore = postgres.NewInvoiceStore(pool)
		outboxStore = postgres.NewOutboxStore(pool)
	} else {
		ob := memory.NewOutboxStore()
		sessionStore = memory.NewSessionStore(ob)
		slotStore = memory.NewSlotStore()
		invoiceStore = memory.NewInvoiceStore()
		outboxStore = ob
		logger.Info("no database configured, using in-memory stores")
	}

	seeded, err := slotStore.SeedIfEmpty(context.Background(), cfg.Slots.Codes)
	if err != nil {
		closeDB(sqlDB, logger)
		return nil, err
	}
	if seeded {
		logger.Info("seeded slot inventory", zap.Strings("slot_codes", cfg.Slots.Codes))
	}

	var (
		redisClient *redis.Client
		activeCache *cache.ActiveSessions
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			closeDB(sqlDB, logger)
			return nil, err
		}
		activeCache = cache.NewActiveSessions(redisClient, cfg.ActiveSessionTTL())
	}

	allocationSvc := service.NewAllocationService(slotStore, logger)
	billingSvc := service.NewBillingService(invoiceStore, service.Tariff{
		HourlyRate:  cfg.Billing.HourlyRate,
		MinimumFare: cfg.Billing.MinimumFare,
	}, logger)

	hub := ws.NewHub(logger)
	notifySvc := service.NewNotificationService(logger,
		service.NewLogNotifier(logger),
		service.NotifierFunc(func(ctx context.Context, n service.Notification) error {
			return hub.Broadcast(n)
		}),
	)

	eventBus := bus.New(logger, bus.Options{})
	eventBus.Subscribe(bus.Consumer{Name: "allocation", Handle: allocationSvc.Consume})
	eventBus.Subscribe(bus.Consumer{Name: "billing", Handle: billingSvc.Consume})
	eventBus.Subscribe(bus.Consumer{Name: "notification", Handle: notifySvc.Consume})

	dispatcher := outbox.NewDispatcher(outboxStore, eventBus, logger, outbox.Options{})
	lifecycleSvc := service.NewLifecycleService(sessionStore, dispatcher, activeCache, logger, cfg.LockWait())

	parkingHandler := handlers.NewParkingHandler(lifecycleSvc, logger)
	reportHandler := handlers.NewReportHandler(billingSvc, logger)
	slotsHandler := handlers.NewSlotsHandler(allocationSvc, logger)

	invoiceSummary := http.HandlerFunc(reportHandler.HandleInvoiceSummary)
	if cfg.Auth.Secret != "" {
		invoiceSummary = middleware.RequireToken(cfg.Auth.Secret)(invoiceSummary).ServeHTTP
	}

	routes := httpserver.Routes{
		Entry:          parkingHandler.HandleEntry,
		Exit:           parkingHandler.HandleExit,
		Slots:          slotsHandler.HandleSlots,
		ActiveSessions: parkingHandler.HandleActiveSessions,
		InvoiceSummary: invoiceSummary,
		Notifications:  hub.HandleUpgrade,
		Health:         handlers.NewHealthHandler(),
	}
	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 1m", func() {
		count, err := outboxStore.PendingCount(context.Background())
		if err != nil {
			logger.Error("outbox backlog check failed", zap.Error(err))
			return
		}
		if count > 0 {
			logger.Warn("outbox backlog detected", zap.Int("pending", count))
			dispatcher.Wake()
		}
	})
	if err != nil {
		closeDB(sqlDB, logger)
		return nil, err
	}

	return &App{
		server:      server,
		eventBus:    eventBus,
		dispatcher:  dispatcher,
		sweeper:     sweeper,
		sqlDB:       sqlDB,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the bus workers, the outbox dispatcher, the sweep schedule and
// the HTTP server, then blocks until the context is cancelled. The bus is
// closed only after the dispatcher has stopped, so no publish can hit a
// closed worker queue.
func (a *App) Run(ctx context.Context) error {
	a.eventBus.Start(ctx)
	go a.dispatcher.Run(ctx)
	a.sweeper.Start()

	err := a.server.Run(ctx)

	a.sweeper.Stop()
	<-a.dispatcher.Done()
	a.eventBus.Close()
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.sqlDB != nil {
		if err := a.sqlDB.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}

func closeDB(sqlDB *sql.DB, logger *zap.Logger) {
	if sqlDB == nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("failed to close db", zap.Error(err))
	}
}
