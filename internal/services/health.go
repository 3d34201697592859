package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

const healthCheckTimeout = 5 * time.Second

type HealthCheck func(ctx context.Context) error

type registeredCheck struct {
	name     string
	critical bool
	check    HealthCheck
}

// HealthService aggregates dependency checks. A failing critical check makes
// the service unhealthy; a failing non-critical one only degrades it.
type HealthService struct {
	logger  *logrus.Logger
	metrics *MetricsCollector
	checks  []registeredCheck
	now     func() time.Time
}

type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]string      `json:"services"`
	Critical    []string               `json:"critical_failures,omitempty"`
	NonCritical []string               `json:"non_critical_failures,omitempty"`
	Latency     time.Duration          `json:"latency,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

func NewHealthService(logger *logrus.Logger, metrics *MetricsCollector) *HealthService {
	return &HealthService{
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register adds a named dependency check. Not safe to call concurrently with
// CheckHealth; register everything during wiring.
func (s *HealthService) Register(name string, critical bool, check HealthCheck) {
	s.checks = append(s.checks, registeredCheck{name: name, critical: critical, check: check})
}

func (s *HealthService) CheckHealth(ctx context.Context) *HealthStatus {
	start := s.now()
	status := &HealthStatus{
		Timestamp: start,
		Services:  make(map[string]string, len(s.checks)),
	}

	allCriticalHealthy := true
	for _, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.check(checkCtx)
		cancel()

		if err == nil {
			status.Services[c.name] = "healthy"
			s.metrics.UpdateHealth(c.name, true)
			continue
		}

		status.Services[c.name] = "unhealthy"
		s.metrics.UpdateHealth(c.name, false)
		entry := s.logger.WithError(err).WithField("service", c.name)
		if c.critical {
			allCriticalHealthy = false
			status.Critical = append(status.Critical, c.name)
			entry.Error("Critical service is unhealthy")
		} else {
			status.NonCritical = append(status.NonCritical, c.name)
			entry.Warn("Non-critical service is unhealthy")
		}
	}
	sort.Strings(status.Critical)
	sort.Strings(status.NonCritical)

	switch {
	case !allCriticalHealthy:
		status.Status = "unhealthy"
	case len(status.NonCritical) > 0:
		status.Status = "degraded"
	default:
		status.Status = "healthy"
	}
	status.Latency = s.now().Sub(start)

	return status
}
