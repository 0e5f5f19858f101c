// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	STKPushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_stk_push_total",
		Help: "STK push initiations by outcome.",
	}, []string{"outcome"})

	Callbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_callback_total",
		Help: "M-Pesa callbacks received by outcome.",
	}, []string{"outcome"})

	StatusQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mpesa_status_query_total",
		Help: "STK status queries by reported status.",
	}, []string{"status"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Latency of HTTP requests by route.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "route", "code"})
)

func init() {
	prometheus.MustRegister(STKPushes, Callbacks, StatusQueries, requestDuration)
}

// Instrument records request latency under the matched route template.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
