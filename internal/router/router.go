package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoicesplit/internal/handler"
	"invoicesplit/internal/metrics"
	"invoicesplit/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	sessionH *handler.SessionHandler,
	webH *handler.WebHandler,
	healthH *handler.HealthHandler,
	corsOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(corsOrigins))
	r.SetHTMLTemplate(handler.Templates())

	// Health checks and metrics
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// Interactive form
	r.GET("/", webH.Index)
	r.POST("/", webH.Start)
	page := r.Group("/s/:id")
	page.GET("", webH.Show)
	page.POST("/document", webH.Upload)
	page.POST("/toggle", webH.Toggle)
	page.POST("/names", webH.Rename)

	v1 := r.Group("/api/v1")

	sessions := v1.Group("/sessions")
	sessions.POST("", sessionH.Create)
	sessions.GET("", sessionH.List)
	sessions.GET("/:id", sessionH.Get)
	sessions.DELETE("/:id", sessionH.Delete)
	sessions.POST("/:id/document", sessionH.Submit)
	sessions.POST("/:id/toggle", sessionH.Toggle)
	sessions.PUT("/:id/participants", sessionH.Rename)
	sessions.GET("/:id/summary", sessionH.Summary)
	sessions.GET("/:id/export", sessionH.Export)

	return r
}
