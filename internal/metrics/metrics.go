package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/knowme/internal/game"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowme_events_total",
			Help: "Session events handed to delivery sinks",
		},
		[]string{"event"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "knowme_events_dropped_total",
			Help: "Session events discarded because the notification queue was full",
		},
	)

	guessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowme_guesses_total",
			Help: "Guesses scored, by outcome",
		},
		[]string{"result"}, // correct / incorrect
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowme_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "knowme_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Sink counts every delivered event.
type Sink struct{}

func (Sink) Deliver(_ context.Context, evt game.Event) error {
	eventsTotal.WithLabelValues(evt.Name).Inc()
	return nil
}

func EventDropped(game.Event) { eventsDropped.Inc() }

func ObserveGuess(correct bool) {
	if correct {
		guessesTotal.WithLabelValues("correct").Inc()
		return
	}
	guessesTotal.WithLabelValues("incorrect").Inc()
}

// RegisterSessionGauge exposes the live session count. Call once per process.
func RegisterSessionGauge(count func() int) {
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "knowme_sessions",
			Help: "Live game sessions",
		},
		func() float64 { return float64(count()) },
	)
}

// Middleware records request counts and latency by route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
