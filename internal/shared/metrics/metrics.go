package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total analyses dispatched to an inference worker",
	})

	analysisOutcomeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_outcome_total",
		Help: "Analyses by outcome (ok or failure kind)",
	}, []string{"outcome"})

	analysisDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_ms",
		Help:    "End-to-end analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})

	workerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "worker_in_flight",
		Help: "Inference worker processes currently running",
	})

	workerExitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_exit_total",
		Help: "Inference worker terminations by status",
	}, []string{"status"})

	workerExtraMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worker_extra_messages_total",
		Help: "Worker output messages ignored after the first",
	})
)

func init() {
	registry.MustRegister(
		analysisStartedTotal,
		analysisOutcomeTotal,
		analysisDuration,
		workerInFlight,
		workerExitTotal,
		workerExtraMessagesTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisOutcome counts a finished analysis under its outcome label.
func IncAnalysisOutcome(outcome string) {
	analysisOutcomeTotal.WithLabelValues(outcome).Inc()
}

// ObserveAnalysisDuration records an analysis duration.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

// WorkerStarted marks a worker process as running.
func WorkerStarted() {
	workerInFlight.Inc()
}

// WorkerExited marks a worker process as gone and counts its status.
func WorkerExited(status string) {
	workerInFlight.Dec()
	workerExitTotal.WithLabelValues(status).Inc()
}

// AddExtraMessages counts worker messages ignored by correlation.
func AddExtraMessages(n int) {
	if n > 0 {
		workerExtraMessagesTotal.Add(float64(n))
	}
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
