package services

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/temcen/retouch/pkg/models"
)

const metricsNamespace = "retouch"

// MetricsCollector owns a private registry so tests and multiple instances
// never collide on the global one. A nil collector records nothing.
type MetricsCollector struct {
	registry *prometheus.Registry

	recommendationRequests *prometheus.CounterVec
	recommendationLatency  prometheus.Histogram
	recommendationsEmitted *prometheus.CounterVec

	feedbackProcessed   *prometheus.CounterVec
	feedbackLatency     *prometheus.HistogramVec
	feedbackSatisfaction *prometheus.HistogramVec
	feedbackQueueDepth  *prometheus.GaugeVec
	sideEffectFailures  *prometheus.CounterVec

	healthStatus    *prometheus.GaugeVec
	lastHealthCheck *prometheus.GaugeVec
}

func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &MetricsCollector{
		registry: reg,

		recommendationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recommendation_requests_total",
			Help:      "Recommendation requests by scope and cache outcome",
		}, []string{"scope", "cache"}),

		recommendationLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "recommendation_latency_seconds",
			Help:      "Recommendation request latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		recommendationsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "recommendations_emitted_total",
			Help:      "Individual operations recommended, by enhancement type",
		}, []string{"enhancement_type"}),

		feedbackProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_processed_total",
			Help:      "Feedback events by kind and outcome",
		}, []string{"kind", "outcome"}),

		feedbackLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_processing_seconds",
			Help:      "Time from dequeue to completion of a feedback event",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		feedbackSatisfaction: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_satisfaction",
			Help:      "Reported satisfaction by enhancement type",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"enhancement_type"}),

		feedbackQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_queue_depth",
			Help:      "Pending feedback events per worker shard",
		}, []string{"shard"}),

		sideEffectFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "feedback_side_effect_failures_total",
			Help:      "Non-fatal failures of cache, graph and event sinks",
		}, []string{"sink"}),

		healthStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "health_check_status",
			Help:      "Health check status (1 = healthy, 0 = unhealthy)",
		}, []string{"service"}),

		lastHealthCheck: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "health_check_timestamp",
			Help:      "Unix time of the last health check",
		}, []string{"service"}),
	}
}

func (mc *MetricsCollector) Registry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

func (mc *MetricsCollector) RecordRecommendation(scope string, cacheHit bool, duration time.Duration, resp *models.RecommendationResponse) {
	if mc == nil {
		return
	}
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	mc.recommendationRequests.WithLabelValues(scope, cache).Inc()
	mc.recommendationLatency.Observe(duration.Seconds())

	if resp == nil || cacheHit {
		return
	}
	for _, result := range resp.Results {
		for _, rec := range result.Recommendations {
			mc.recommendationsEmitted.WithLabelValues(string(rec.Type)).Inc()
		}
	}
}

func (mc *MetricsCollector) RecordFeedback(kind, outcome string, duration time.Duration) {
	if mc == nil {
		return
	}
	mc.feedbackProcessed.WithLabelValues(kind, outcome).Inc()
	mc.feedbackLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

func (mc *MetricsCollector) ObserveSatisfaction(t models.EnhancementType, satisfaction float64) {
	if mc == nil {
		return
	}
	mc.feedbackSatisfaction.WithLabelValues(string(t)).Observe(satisfaction)
}

func (mc *MetricsCollector) SetQueueDepth(shard string, depth int) {
	if mc == nil {
		return
	}
	mc.feedbackQueueDepth.WithLabelValues(shard).Set(float64(depth))
}

func (mc *MetricsCollector) RecordSideEffectFailure(sink string) {
	if mc == nil {
		return
	}
	mc.sideEffectFailures.WithLabelValues(sink).Inc()
}

func (mc *MetricsCollector) UpdateHealth(service string, healthy bool) {
	if mc == nil {
		return
	}
	value := 0.0
	if healthy {
		value = 1
	}
	mc.healthStatus.WithLabelValues(service).Set(value)
	mc.lastHealthCheck.WithLabelValues(service).Set(float64(time.Now().Unix()))
}
