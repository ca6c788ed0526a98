package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roulette"

type Metrics struct {
	reg      prometheus.Registerer
	gatherer prometheus.Gatherer

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	WsConnections prometheus.Gauge

	DonationsConfirmed prometheus.Counter
	DonationsRejected  *prometheus.CounterVec
	DonatedNano        prometheus.Counter

	IndexerRequests        *prometheus.CounterVec
	IndexerRequestDuration *prometheus.HistogramVec
}

// New registers all collectors on reg. A nil reg means the default registry.
func New(reg *prometheus.Registry) *Metrics {
	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if reg != nil {
		registerer, gatherer = reg, reg
	}

	m := &Metrics{
		reg:      registerer,
		gatherer: gatherer,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total amount of processed HTTP requests.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Request processing latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		WsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Current amount of active WebSocket connections.",
		}),
		DonationsConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_confirmed_total",
			Help:      "Amount of TON donations verified and credited.",
		}),
		DonationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donations_rejected_total",
			Help:      "Amount of TON donation confirmations rejected, by reason.",
		}, []string{"reason"}),
		DonatedNano: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donated_nanoton_total",
			Help:      "Sum of credited donations in nanoTON.",
		}),
		IndexerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexer_requests_total",
			Help:      "Indexer transaction lookups grouped by result.",
		}, []string{"result"}),
		IndexerRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexer_request_duration_seconds",
			Help:      "Indexer request latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"result"}),
	}

	registerer.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.WsConnections,
		m.DonationsConfirmed,
		m.DonationsRejected,
		m.DonatedNano,
		m.IndexerRequests,
		m.IndexerRequestDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.reg})
}
