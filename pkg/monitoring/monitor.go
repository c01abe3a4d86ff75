package monitoring

import (
	"strconv"
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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// MailboxEvents 推送事件数，direction: publish / deliver / drop
	MailboxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailbox_events_total",
			Help: "Mailbox push events by type and direction",
		},
		[]string{"type", "direction"},
	)

	MailboxMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mailbox_messages_total",
			Help: "Messages appended to the mailbox",
		},
	)

	// StreamClients 当前实例上的 SSE / WebSocket 连接数
	StreamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mailbox_stream_clients",
			Help: "Connected mailbox stream clients",
		},
		[]string{"transport"},
	)

	Enrollments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_total",
			Help: "New course enrollments",
		},
	)

	CourseCompletions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "course_completions_total",
			Help: "Courses transitioned to complete",
		},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			MailboxEvents,
			MailboxMessages,
			StreamClients,
			Enrollments,
			CourseCompletions,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
