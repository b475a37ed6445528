package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/editorial/internal/http/handler"
)

func PersonaRouter(router *gin.RouterGroup, handler *handler.PersonaHandler) {
	router.GET("", handler.List)
	router.GET("/:id", handler.Get)
}

func EditorialRouter(router *gin.RouterGroup, handler *handler.EditorialHandler, requireKey gin.HandlerFunc) {
	router.GET("/projects/:id/phase", handler.ProjectPhase)
	router.GET("/projects/:id/knowledge", handler.Knowledge)
	router.PUT("/projects/:id/preferences", requireKey, handler.ReplacePreferences)
	router.GET("/threads/:id/phase", handler.ThreadPhase)
}
