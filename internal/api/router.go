package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/mandate-console/internal/handlers"
	"github.com/akylbek/payment-system/mandate-console/internal/service"
	"github.com/akylbek/payment-system/mandate-console/internal/telemetry"
)

func NewRouter(manager *service.WizardManager, registry *service.ListRegistry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": telemetry.ServiceName})
	})

	wizardHandler := handlers.NewWizardHandler(manager)
	listHandler := handlers.NewListHandler(registry)

	authed := r.Group("/", handlers.SessionContextMiddleware())

	wizards := authed.Group("/wizards")
	wizards.POST("", wizardHandler.Create)
	wizards.GET("/:id", wizardHandler.Get)
	wizards.DELETE("/:id", wizardHandler.Discard)
	wizards.GET("/:id/journal", wizardHandler.GetJournal)
	wizards.POST("/:id/reset", wizardHandler.Reset)
	wizards.PUT("/:id/phone", wizardHandler.EnterPhone)
	wizards.POST("/:id/mandate", wizardHandler.CreateMandate)
	wizards.POST("/:id/otp/authorize", wizardHandler.AuthorizeOTP)
	wizards.POST("/:id/otp/resend", wizardHandler.ResendOTP)
	wizards.POST("/:id/payment", wizardHandler.RequestFirstPayment)
	wizards.POST("/:id/settlement/refresh", wizardHandler.RefreshSettlement)

	lists := authed.Group("/accounts/lists")
	lists.GET("/:kind", listHandler.Get)
	lists.POST("/:kind/refresh", listHandler.Refresh)
	lists.PUT("/:kind/polling", listHandler.SetPolling)

	return r
}
