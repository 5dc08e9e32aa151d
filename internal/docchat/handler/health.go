package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
)

// Healthz 健康检查。
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "docchat",
		"version":   version.Get().GitVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
