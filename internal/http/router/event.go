package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventIngestHandler) {
	router.POST("", handler.Ingest)
}

func WebhookRouter(router *gin.RouterGroup, handler *handler.GitLabWebhookHandler) {
	router.POST("/gitlab", handler.HandleEvent)
}
