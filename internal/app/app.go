package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/tunegraph/internal/config"
	httpx "github.com/yungbote/tunegraph/internal/http"
	httpH "github.com/yungbote/tunegraph/internal/http/handlers"
	"github.com/yungbote/tunegraph/internal/observability"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

const ServiceName = "tunegraph"

// Version is stamped at build time with -ldflags.
var Version = "dev"

type App struct {
	Log      *logger.Logger
	Cfg      *config.Registry
	Clients  Clients
	Services Services
	Health   *httpH.HealthHandler
	Router   *gin.Engine

	server       *httpx.Server
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: ServiceName,
		Environment: cfg.Log.Mode,
		Version:     Version,
	})
	if otelShutdown == nil {
		otelShutdown = func(context.Context) error { return nil }
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = otelShutdown(context.WithoutCancel(ctx))
		log.Sync()
		return nil, err
	}

	services, err := wireServices(ctx, log, cfg, clients)
	if err != nil {
		clients.Close(context.WithoutCancel(ctx))
		_ = otelShutdown(context.WithoutCancel(ctx))
		log.Sync()
		return nil, err
	}

	healthHandler := httpH.NewHealthHandler(services.Monitor)
	router := httpx.NewRouter(httpx.RouterConfig{
		Log:            log,
		ServiceName:    ServiceName,
		HealthHandler:  healthHandler,
		MetricsHandler: promhttp.Handler(),
		AllowedOrigins: splitOrigins(cfg.Server.AllowedOrigins),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Clients:      clients,
		Services:     services,
		Health:       healthHandler,
		Router:       router,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background health loop and marks the service ready.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.Monitor != nil {
		go a.Services.Monitor.Run(ctx, a.Cfg.Health.Interval)
	}
	a.Health.SetReady(true)
}

// Run serves the ops router until Shutdown is called.
func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.server = httpx.NewServer(a.Cfg.Server.Addr, a.Router)
	a.Log.Info("ops server listening", "addr", a.Cfg.Server.Addr)
	return a.server.Run()
}

func (a *App) Shutdown(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.Health != nil {
		a.Health.SetReady(false)
	}
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx := context.Background()
	a.Clients.Close(ctx)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// splitOrigins accepts both YAML lists and a comma-separated env value.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, o := range strings.Split(item, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
	}
	return out
}
