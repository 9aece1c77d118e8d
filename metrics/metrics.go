// kodata-dao/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kodata",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kodata",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	rewardMints = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kodata",
			Subsystem: "rewards",
			Name:      "mints_total",
			Help:      "Reward mint attempts by outcome.",
		},
		[]string{"result"},
	)

	rewardAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "kodata",
			Subsystem: "rewards",
			Name:      "minted_amount_total",
			Help:      "Total MAD token amount submitted for minting.",
		},
	)

	reputationUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kodata",
			Subsystem: "relayer",
			Name:      "reputation_updates_total",
			Help:      "Reputation relay attempts by resulting status.",
		},
		[]string{"status"},
	)

	relayerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "kodata",
			Subsystem: "relayer",
			Name:      "queue_depth",
			Help:      "Submissions currently waiting in the relayer queue.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		rewardMints,
		rewardAmount,
		reputationUpdates,
		relayerQueueDepth,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latencies per route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}

		httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordRewardMint records one reward mint attempt.
// result is one of submitted, failed, credited.
func RecordRewardMint(result string, amount float64) {
	rewardMints.WithLabelValues(result).Inc()
	if amount > 0 {
		rewardAmount.Add(amount)
	}
}

// RecordReputationUpdate records one relayer attempt by resulting status.
func RecordReputationUpdate(status string) {
	reputationUpdates.WithLabelValues(status).Inc()
}

// SetRelayerQueueDepth mirrors the relayer channel backlog.
func SetRelayerQueueDepth(n int) {
	relayerQueueDepth.Set(float64(n))
}
