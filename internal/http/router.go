package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/tunegraph/internal/http/handlers"
	httpMW "github.com/yungbote/tunegraph/internal/http/middleware"
	"github.com/yungbote/tunegraph/internal/platform/logger"
)

type RouterConfig struct {
	Log           *logger.Logger
	ServiceName   string
	HealthHandler *httpH.HealthHandler
	// MetricsHandler serves the Prometheus exposition, typically promhttp.Handler().
	MetricsHandler http.Handler
	AllowedOrigins []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics())
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(httpMW.CORS(cfg.AllowedOrigins))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Healthz)
		r.GET("/readyz", cfg.HealthHandler.Readyz)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}
	return r
}
