package obs

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. Each instance owns its registry so
// tests can build one without clashing on the default registerer.
type Metrics struct {
	Registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	assemblyDrops  *prometheus.CounterVec
	outboxRelayed  *prometheus.CounterVec
	inboxProcessed *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipehub_http_requests_total",
				Help: "Total number of HTTP requests processed by the messaging service.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "recipehub_http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		assemblyDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipehub_assembly_dropped_total",
				Help: "Items skipped while reconstructing messages or conversations.",
			},
			[]string{"stage"},
		),
		outboxRelayed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipehub_outbox_relayed_total",
				Help: "Outbox events handed to the broker, by result.",
			},
			[]string{"result"},
		),
		inboxProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recipehub_inbox_processed_total",
				Help: "Consumed broker events, by result.",
			},
			[]string{"result"},
		),
	}
	m.Registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.assemblyDrops,
		m.outboxRelayed,
		m.inboxProcessed,
	)
	return m
}

func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// AssemblyDropped matches the assembly OnDrop hook.
func (m *Metrics) AssemblyDropped(stage string) {
	m.assemblyDrops.WithLabelValues(stage).Inc()
}

func (m *Metrics) OutboxRelayed(ok bool) {
	m.outboxRelayed.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) InboxProcessed(outcome string) {
	m.inboxProcessed.WithLabelValues(outcome).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
