package app

import (
	"context"
	"fmt"
	"net"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/storyboard-backend/internal/data/db"
	"github.com/yungbote/storyboard-backend/internal/http"
	"github.com/yungbote/storyboard-backend/internal/observability"
	"github.com/yungbote/storyboard-backend/internal/platform/envutil"
	"github.com/yungbote/storyboard-backend/internal/platform/logger"
	"github.com/yungbote/storyboard-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	SSEHub   *realtime.SSEHub
	Metrics  *observability.Metrics

	dbService    *db.Service
	otelShutdown func(context.Context) error
}

// NewLogger builds the process logger from LOG_MODE.
func NewLogger() (*logger.Logger, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}

// OpenDB connects with DB_DRIVER/DB_DSN and migrates the schema.
func OpenDB(log *logger.Logger) (*db.Service, error) {
	svc, err := db.Open(db.ConfigFromEnv(), log)
	if err != nil {
		return nil, fmt.Errorf("init db: %w", err)
	}
	if err := db.AutoMigrateAll(svc.DB()); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := db.EnsureJobIndexes(svc.DB()); err != nil {
		_ = svc.Close()
		return nil, err
	}
	return svc, nil
}

// New wires the application. cfg.RunServer and cfg.RunWorker decide whether
// the router and the job workers are built.
func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	if observability.Enabled() {
		a.Metrics = observability.Init(log)
	}

	dbService, err := OpenDB(log)
	if err != nil {
		return nil, err
	}
	a.dbService = dbService
	a.DB = dbService.DB()

	a.SSEHub = realtime.NewSSEHub(log)
	a.Repos = wireRepos(a.DB, log)

	if a.Clients, err = wireClients(log); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if a.Services, err = wireServices(a.DB, log, cfg, a.Repos, a.SSEHub, a.Clients); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if cfg.RunServer {
		handlers := wireHandlers(log, a.DB, a.Services, a.Clients, a.SSEHub)
		a.Router = wireRouter(log, cfg, a.Metrics, handlers)
	}
	return a, nil
}

// Start launches the background parts: the SSE forwarder, the job workers and
// the queue depth collector. All of them stop when ctx is done.
func (a *App) Start(ctx context.Context) error {
	if a.Cfg.RunServer && a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			return fmt.Errorf("start SSE forwarder: %w", err)
		}
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
	if a.Services.TemporalWorker != nil {
		if err := a.Services.TemporalWorker.Start(ctx); err != nil {
			return fmt.Errorf("start temporal worker: %w", err)
		}
	}
	a.Metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
	return nil
}

// Run serves HTTP, or just waits for ctx in a worker-only process, then waits
// for in-flight jobs to return.
func (a *App) Run(ctx context.Context) error {
	var err error
	if a.Router != nil {
		addr := net.JoinHostPort("", a.Cfg.Port)
		a.Log.Info("HTTP server listening", "addr", addr)
		err = http.NewServerFromEngine(a.Router).Run(ctx, addr, a.Cfg.ShutdownGrace)
	} else {
		<-ctx.Done()
	}
	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Wait()
	}
	return err
}

func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.WithoutCancel(ctx)); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
