package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cloud-deploy-dashboard/internal/auth"
	"cloud-deploy-dashboard/internal/handler"
	"cloud-deploy-dashboard/internal/metrics"
	"cloud-deploy-dashboard/internal/pkg/logger"
)

// New builds the engine with recovery, request logging and CORS for
// allowOrigins, and registers all routes.
func New(l *logger.Logger, allowOrigins []string, a *auth.Auth, m *metrics.Metrics,
	authHandler *handler.AuthHandler, deployHandler *handler.DeployHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Tracing(otel.GetTracerProvider()))
	r.Use(RequestLogger(l))

	config := cors.DefaultConfig()
	config.AllowOrigins = allowOrigins
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	RegisterRoutes(r, a, m, authHandler, deployHandler)
	return r
}

func RegisterRoutes(r *gin.Engine, a *auth.Auth, m *metrics.Metrics,
	authHandler *handler.AuthHandler, deployHandler *handler.DeployHandler) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	{
		api.POST("/login", authHandler.Login)

		protected := api.Group("", a.Middleware())
		{
			protected.POST("/deploy-to-cloud", deployHandler.Deploy)
			protected.GET("/deployment-progress", deployHandler.Progress)
			protected.GET("/deployment-progress/ws", deployHandler.Stream)
		}
	}
}

// Tracing starts a server span per request, continuing a trace propagated
// by the caller. 5xx responses mark the span as failed.
func Tracing(tp trace.TracerProvider) gin.HandlerFunc {
	tracer := tp.Tracer("cloud-deploy-dashboard/server")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
			))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// RequestLogger logs one line per request at Info, or Warn for 4xx/5xx.
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusBadRequest {
			l.Warn("request", fields...)
			return
		}
		l.Info("request", fields...)
	}
}
