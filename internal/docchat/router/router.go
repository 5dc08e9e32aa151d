// Package router provides docchat service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docchat/internal/docchat/handler"
)

// Register registers the docchat service routes.
func Register(
	engine *gin.Engine,
	sessionHandler *handler.SessionHandler,
	documentHandler *handler.DocumentHandler,
	chatHandler *handler.ChatHandler,
) {
	logger.Info("Registering docchat routes...")

	engine.GET("/healthz", handler.Healthz)

	v1 := engine.Group("/api/v1")
	{
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", sessionHandler.Create)
			sessions.GET("", sessionHandler.List)
			sessions.GET("/:id", sessionHandler.Get)
			sessions.PATCH("/:id", sessionHandler.Rename)
			sessions.DELETE("/:id", sessionHandler.Delete)

			sessions.POST("/:id/documents", documentHandler.Upload)
			sessions.GET("/:id/documents", documentHandler.List)
			sessions.GET("/:id/documents/:docID", documentHandler.Fetch)
			sessions.DELETE("/:id/documents/:docID", documentHandler.Delete)

			sessions.POST("/:id/messages", chatHandler.Send)
		}
	}

	logger.Info("HTTP routes registered")
}
