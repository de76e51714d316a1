// Package metrics exposes Prometheus collectors for HTTP traffic and exam
// scoring.
package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SubmissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Exam attempts persisted, by exam type",
		},
		[]string{"exam_type"},
	)

	BandScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exam_band_score",
			Help:    "Band scores computed for submissions",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
		[]string{"exam_type"},
	)

	FeedbackJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writing_feedback_jobs_total",
			Help: "AI feedback jobs processed, by outcome",
		},
		[]string{"outcome"},
	)

	registerOnce sync.Once
)

// Init registers every collector with the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, SubmissionCounter, BandScore, FeedbackJobs)
	})
}

// ObserveSubmission records one persisted attempt.
func ObserveSubmission(examType string, score float64) {
	t := strings.ToLower(examType)
	SubmissionCounter.WithLabelValues(t).Inc()
	BandScore.WithLabelValues(t).Observe(score)
}

// ObserveFeedbackJob records the outcome of an AI feedback job:
// "stored", "requeued" or "dead".
func ObserveFeedbackJob(outcome string) {
	FeedbackJobs.WithLabelValues(outcome).Inc()
}

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
