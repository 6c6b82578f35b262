package dremel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the module.
type Metrics struct {
	ProbesTotal     prometheus.Counter
	DiscoveredTotal prometheus.Counter
	ActivePrinters  prometheus.Gauge
	PollErrors      prometheus.Counter
	UploadsTotal    *prometheus.CounterVec
}

// NewMetrics registers the module's instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ProbesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dremelink",
			Subsystem: "scanner",
			Name:      "probes_total",
			Help:      "Number of status probes sent during discovery sweeps.",
		}),
		DiscoveredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dremelink",
			Subsystem: "scanner",
			Name:      "printers_discovered_total",
			Help:      "Number of printers discovered for the first time.",
		}),
		ActivePrinters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dremelink",
			Subsystem: "manager",
			Name:      "active_printers",
			Help:      "Number of printers with an active poll loop.",
		}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dremelink",
			Subsystem: "connection",
			Name:      "poll_errors_total",
			Help:      "Number of failed status polls.",
		}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dremelink",
			Subsystem: "jobs",
			Name:      "uploads_total",
			Help:      "Print job submissions by outcome.",
		}, []string{"outcome"}),
	}
}
