package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/http/handler"
	"basegraph.app/editorial/internal/http/middleware"
	"basegraph.app/editorial/internal/service"
	"basegraph.app/editorial/internal/tracker"
)

type RouterConfig struct {
	TraceHeaderName string
	AdminAPIKey     string
	DefaultPersona  string
	// Webhook is nil when GitLab is not configured.
	Webhook *tracker.WebhookParser
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	// Project and thread ids contain slashes; clients escape them.
	router.UseRawPath = true
	router.UnescapePathValues = true

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	ingestHandler := handler.NewEventIngestHandler(services.EventIngest(), cfg.TraceHeaderName)

	if cfg.Webhook != nil {
		webhookHandler := handler.NewGitLabWebhookHandler(cfg.Webhook, services.EventIngest(), cfg.TraceHeaderName)
		WebhookRouter(router.Group("/webhooks"), webhookHandler)
	}

	v1 := router.Group("/api/v1")
	{
		EventRouter(v1.Group("/events", middleware.RequireAPIKey(cfg.AdminAPIKey)), ingestHandler)

		personaHandler := handler.NewPersonaHandler(services.Editorial(), cfg.DefaultPersona)
		PersonaRouter(v1.Group("/personas"), personaHandler)

		editorialHandler := handler.NewEditorialHandler(services.Editorial())
		EditorialRouter(v1, editorialHandler, middleware.RequireAPIKey(cfg.AdminAPIKey))
	}
}
