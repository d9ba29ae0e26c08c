package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	Success                  Outcome       = "success"
	Error                    Outcome       = "error"
	MetricRequestTimeout     time.Duration = 5 * time.Second
	MetricRequestIdleTimeout time.Duration = 10 * time.Second
)

func (O Outcome) String() string {
	return string(O)
}

func outcome(failure bool) Outcome {
	if failure {
		return Error
	}
	return Success
}

var defaultHistogramBucketsSeconds = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30}

// Collectors are built eagerly so recording works before Init registers them.
var (
	once          sync.Once
	metricsRouter *chi.Mux

	// client requests are the ones sending to other service
	clientRequestDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_request_duration_seconds",
			Help:    "Histogram of outgoing client request durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"baseurl", "method", "path", "status"},
	)

	clientLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_latency_seconds",
			Help:    "Histogram of collaborator client durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"client", "method", "status"},
	)

	queueSendErrorCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_send_error_count",
			Help: "The total number of errors when sending messages to the queue",
		},
	)

	pollerDurationHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "poller_duration_seconds",
			Help:    "Histogram of poller durations in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"type", "status"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fund_operation_duration_seconds",
			Help:    "Fund operation duration in seconds.",
			Buckets: defaultHistogramBucketsSeconds,
		},
		[]string{"operation", "status"},
	)

	dbLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "db_latency_seconds",
			Help: "DB latency in seconds splitted by method and execution status",
		},
		[]string{"method", "status"},
	)

	pendingCashoutDriftCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pending_cashout_drift_total",
			Help: "Number of times the cached pending cashout total disagreed with the queue",
		},
	)

	fundGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fund_state",
			Help: "Last observed fund ledger values",
		},
		[]string{"field"},
	)
)

// Init initializes the metrics package.
func Init(metricsPort int) {
	once.Do(func() {
		initMetricsRouter(metricsPort)
		registerMetrics()
	})
}

// initMetricsRouter initializes the metrics router.
func initMetricsRouter(metricsPort int) {
	metricsRouter = chi.NewRouter()
	metricsRouter.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	metricsAddr := fmt.Sprintf(":%d", metricsPort)
	server := &http.Server{
		Addr:         metricsAddr,
		Handler:      metricsRouter,
		ReadTimeout:  MetricRequestTimeout,
		WriteTimeout: MetricRequestTimeout,
		IdleTimeout:  MetricRequestIdleTimeout,
	}

	go func() {
		log.Printf("Starting metrics server on %s", metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msgf("Error starting metrics server on %s", metricsAddr)
		}
	}()
}

func registerMetrics() {
	prometheus.MustRegister(
		clientRequestDurationHistogram,
		clientLatency,
		queueSendErrorCounter,
		pollerDurationHistogram,
		operationDuration,
		dbLatency,
		pendingCashoutDriftCounter,
		fundGauge,
	)
}

func RecordClientLatency(d time.Duration, client, method string, failure bool) {
	clientLatency.WithLabelValues(client, method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordDbLatency(d time.Duration, method string, failure bool) {
	dbLatency.WithLabelValues(method, outcome(failure).String()).Observe(d.Seconds())
}

func RecordOperationDuration(d time.Duration, operation string, failure bool) {
	operationDuration.WithLabelValues(operation, outcome(failure).String()).Observe(d.Seconds())
}

func IncPendingCashoutDrift() {
	pendingCashoutDriftCounter.Inc()
}

// FundSnapshot is the subset of ledger values exported as gauges.
type FundSnapshot struct {
	TotalShares         uint64
	SmoothedValuation   uint64
	RealValuation       uint64
	TotalUsers          uint64
	PendingCashoutTotal uint64
	RegistryShards      uint64
	ActiveUsers         uint64
}

func RecordFundSnapshot(s FundSnapshot) {
	fundGauge.WithLabelValues("total_shares").Set(float64(s.TotalShares))
	fundGauge.WithLabelValues("smoothed_valuation").Set(float64(s.SmoothedValuation))
	fundGauge.WithLabelValues("real_valuation").Set(float64(s.RealValuation))
	fundGauge.WithLabelValues("total_users").Set(float64(s.TotalUsers))
	fundGauge.WithLabelValues("pending_cashout_total").Set(float64(s.PendingCashoutTotal))
	fundGauge.WithLabelValues("registry_shards").Set(float64(s.RegistryShards))
	fundGauge.WithLabelValues("registry_active_users").Set(float64(s.ActiveUsers))
}

// StartClientRequestDurationTimer starts a timer to measure outgoing client request duration.
func StartClientRequestDurationTimer(baseUrl, method, path string) func(statusCode int) {
	startTime := time.Now()
	return func(statusCode int) {
		duration := time.Since(startTime).Seconds()
		clientRequestDurationHistogram.WithLabelValues(
			baseUrl,
			method,
			path,
			fmt.Sprintf("%d", statusCode),
		).Observe(duration)
	}
}

func RecordQueueSendError() {
	queueSendErrorCounter.Inc()
}
