package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fathima-sithara/teamchat/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "teamchat_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamchat_messages_created_total",
		Help: "Messages created.",
	})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "teamchat_events_published_total",
		Help: "Domain events published by type and outcome.",
	}, []string{"type", "outcome"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "teamchat_ws_connections",
		Help: "Open websocket connections.",
	})

	WSInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teamchat_ws_invalidations_total",
		Help: "Invalidation frames queued to subscribers.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency keyed by the matched route
// pattern rather than the raw path.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = apperr.Status(err)
			}
		}
		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
