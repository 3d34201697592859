package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/temcen/retouch/internal/services"
)

type Handlers struct {
	Health      *HealthHandler
	Enhancement *EnhancementHandler
	Feedback    *FeedbackHandler
	Metrics     *MetricsHandler
}

func New(logger *logrus.Logger, services *services.Services) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(logger, services.Health),
		Enhancement: NewEnhancementHandler(services.Enhancement, logger),
		Feedback:    NewFeedbackHandler(services.Feedback, logger),
		Metrics:     NewMetricsHandler(services.Metrics),
	}
}
