package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "debatehub"

// Metrics holds Prometheus metrics for the service. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RateLimitRejected *prometheus.CounterVec
	Votes             *prometheus.CounterVec
	Sweeps            prometheus.Counter
	Forfeits          prometheus.Counter
	SweepAmbiguous    prometheus.Counter
	DebatesCreated    prometheus.Counter
}

// NewMetrics registers the service metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		RateLimitRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"class"},
		),
		Votes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_total",
				Help:      "Votes processed by target kind and resulting action",
			},
			[]string{"kind", "action"},
		),
		Sweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeout_sweeps_total",
			Help:      "Timeout sweeps run",
		}),
		Forfeits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forfeits_total",
			Help:      "Participants forfeited by the timeout sweep",
		}),
		SweepAmbiguous: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeout_sweep_ambiguous_total",
			Help:      "Timed-out debates skipped because the forfeiting participant was ambiguous",
		}),
		DebatesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "debates_created_total",
			Help:      "Debates created",
		}),
	}
}

func (m *Metrics) RateLimited(class string) {
	if m == nil {
		return
	}
	m.RateLimitRejected.WithLabelValues(class).Inc()
}

func (m *Metrics) VoteRecorded(kind, action string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(kind, action).Inc()
}

func (m *Metrics) SweepRan(forfeits, ambiguous int) {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
	m.Forfeits.Add(float64(forfeits))
	m.SweepAmbiguous.Add(float64(ambiguous))
}

func (m *Metrics) DebateCreated() {
	if m == nil {
		return
	}
	m.DebatesCreated.Inc()
}

// Middleware records request counts and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
