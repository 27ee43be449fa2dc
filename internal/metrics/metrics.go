package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments. All collectors live on a
// dedicated registry so tests can construct isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	WebhookEvents   *prometheus.CounterVec
	WorkerRuns      *prometheus.CounterVec
	SimsPolled      *prometheus.CounterVec
	ProviderOrders  *prometheus.CounterVec
	ExternalLatency *prometheus.HistogramVec
	SSEClients      prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		Registry: registry,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroam_webhook_events_total",
			Help: "Payment and fulfillment webhook deliveries by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WorkerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroam_worker_runs_total",
			Help: "Background worker runs by job and result.",
		}, []string{"job", "result"}),
		SimsPolled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroam_sims_polled_total",
			Help: "Usage poll fetches by outcome.",
		}, []string{"outcome"}),
		ProviderOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simroam_provider_orders_total",
			Help: "Wholesale provider orders by provider and status.",
		}, []string{"provider", "status"}),
		ExternalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simroam_external_call_seconds",
			Help:    "Latency of outbound provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "call"}),
		SSEClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simroam_sse_clients",
			Help: "Currently connected SSE streams.",
		}),
	}
	registry.MustRegister(
		m.WebhookEvents,
		m.WorkerRuns,
		m.SimsPolled,
		m.ProviderOrders,
		m.ExternalLatency,
		m.SSEClients,
	)
	return m
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
