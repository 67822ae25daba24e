package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	attemptsStarted   prometheus.Counter
	attemptsCompleted *prometheus.CounterVec
	attemptsAbandoned *prometheus.CounterVec
	answersSubmitted  prometheus.Counter
	scores            prometheus.Histogram
	recomputations    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Quiz attempts opened",
		}),
		attemptsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_completed_total",
				Help: "Quiz attempts scored, by outcome and end reason",
			},
			[]string{"passed", "reason"},
		),
		attemptsAbandoned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_abandoned_total",
				Help: "Quiz attempts abandoned, by reason",
			},
			[]string{"reason"},
		),
		answersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_submitted_total",
			Help: "Answer submissions accepted",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "quiz_attempt_score_percentage",
			Help:    "Score percentage of completed attempts",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		recomputations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_performance_recomputations_total",
				Help: "Performance record rebuilds, by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.attemptsStarted,
		m.attemptsCompleted,
		m.attemptsAbandoned,
		m.answersSubmitted,
		m.scores,
		m.recomputations,
	)
	return m
}

func (m *Metrics) AttemptStarted() {
	if m == nil {
		return
	}
	m.attemptsStarted.Inc()
}

func (m *Metrics) AttemptCompleted(score float64, passed bool, reason string) {
	if m == nil {
		return
	}
	m.attemptsCompleted.WithLabelValues(strconv.FormatBool(passed), reason).Inc()
	m.scores.Observe(score)
}

func (m *Metrics) AttemptAbandoned(reason string) {
	if m == nil {
		return
	}
	m.attemptsAbandoned.WithLabelValues(reason).Inc()
}

func (m *Metrics) AnswerSubmitted() {
	if m == nil {
		return
	}
	m.answersSubmitted.Inc()
}

func (m *Metrics) PerformanceRecomputed(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.recomputations.WithLabelValues(result).Inc()
}

// Middleware records request counts and latencies per route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the given gatherer in the Prometheus text format
func Handler(gatherer prometheus.Gatherer) gin.HandlerFunc {
	h := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
