package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/temcen/retouch/internal/services"
)

// MetricsHandler exposes the Prometheus registry.
type MetricsHandler struct {
	metricsCollector *services.MetricsCollector
}

func NewMetricsHandler(metricsCollector *services.MetricsCollector) *MetricsHandler {
	return &MetricsHandler{metricsCollector: metricsCollector}
}

func (h *MetricsHandler) Prometheus() gin.HandlerFunc {
	return gin.WrapH(h.metricsCollector.Handler())
}
