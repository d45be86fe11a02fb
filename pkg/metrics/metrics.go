package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/careerforge/console/pkg/config"
	"github.com/careerforge/console/pkg/logger"
)

// ⭐ SSOT: Prometheus 지표 정의는 여기서만

var (
	EvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "abtest",
		Name:      "evaluations_total",
		Help:      "A/B test evaluations by outcome reason and trigger",
	}, []string{"reason", "trigger"})

	EvaluationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "abtest",
		Name:      "evaluation_failures_total",
		Help:      "Evaluations abandoned after all retries, by trigger",
	}, []string{"trigger"})

	VariantsDeactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "abtest",
		Name:      "variants_deactivated_total",
		Help:      "Losing variants switched off by the selector",
	})

	OverrideSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "careerforge",
		Subsystem: "abtest",
		Name:      "override_skips_total",
		Help:      "Losing variants left untouched because of a manual override",
	})

	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "careerforge",
		Subsystem: "abtest",
		Name:      "evaluation_duration_seconds",
		Help:      "Fetch-evaluate-write cycle latency per test, retries included",
		Buckets:   prometheus.DefBuckets,
	})
)

// ObserveEvaluation records one finished evaluation
func ObserveEvaluation(reason, trigger string, deactivated, skipped int, took time.Duration) {
	EvaluationsTotal.WithLabelValues(reason, trigger).Inc()
	VariantsDeactivatedTotal.Add(float64(deactivated))
	OverrideSkipsTotal.Add(float64(skipped))
	EvaluationDuration.Observe(took.Seconds())
}

// ObserveFailure records an evaluation that gave up
func ObserveFailure(trigger string, took time.Duration) {
	EvaluationFailuresTotal.WithLabelValues(trigger).Inc()
	EvaluationDuration.Observe(took.Seconds())
}

// Server exposes /metrics on its own port
type Server struct {
	httpServer *http.Server
	logger     *logger.Logger
}

// NewServer creates the metrics endpoint server
func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.Component("metrics"),
	}
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting metrics server")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
