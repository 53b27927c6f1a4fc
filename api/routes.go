// Package api exposes the single-image pipeline over HTTP for clients that
// cannot batch files through the CLI.
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mwzhu/unwatermark"
)

// Config holds server configuration.
type Config struct {
	MaxFileSize int64
	Threshold   float64
}

// SetupRoutes registers the API endpoints on a gin engine.
func SetupRoutes(r *gin.Engine, engine *unwatermark.Engine, config *Config, log zerolog.Logger) {
	h := &handler{engine: engine, config: config, log: log}

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/remove", h.HandleRemove)
		apiGroup.POST("/detect", h.HandleDetect)
		apiGroup.GET("/health", h.HandleHealth)
	}
}
