package main

import (
	"autodialer/internal/httpapi"
	"autodialer/internal/telephony"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, api httpapi.Handlers, webhook telephony.StatusCallbackHandler) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Provider status callback; signature checked when TWILIO_VALIDATE_SIGNATURE is set.
	r.POST("/api/call_status", webhook.HandleCallStatus)

	api.Mount(r.Group("/v1"))
}
