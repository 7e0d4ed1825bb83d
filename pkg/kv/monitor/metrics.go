package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the engine's resident
// chunk count, total chunk count, and flush rate. Registration happens
// once, against the default registry, the first time newMetrics is
// called; later calls from additional engines in the same process
// reuse the already-registered collectors.
type Metrics struct {
	resident prometheus.Gauge
	chunks   prometheus.Gauge
	flushes  prometheus.Counter
}

func newMetrics() *Metrics {
	m := &Metrics{
		resident: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polarkv",
			Name:      "resident_chunks",
			Help:      "Number of arena chunks currently resident in memory.",
		}),
		chunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polarkv",
			Name:      "total_chunks",
			Help:      "Total number of chunks in the arena directory.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polarkv",
			Name:      "flushes_total",
			Help:      "Total number of completed flush cycles.",
		}),
	}

	m.resident = registerGauge(m.resident)
	m.chunks = registerGauge(m.chunks)
	m.flushes = registerCounter(m.flushes)

	return m
}

// registerGauge registers g, or returns the collector already
// registered under the same name if a second engine in this process
// got there first.
func registerGauge(g prometheus.Gauge) prometheus.Gauge {
	if err := prometheus.Register(g); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Gauge)
		}
	}
	return g
}

func registerCounter(c prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(prometheus.Counter)
		}
	}
	return c
}

// Observe updates the gauges and adds flushesSinceLast to the counter.
func (m *Metrics) Observe(resident, total int, flushesSinceLast uint64) {
	m.resident.Set(float64(resident))
	m.chunks.Set(float64(total))
	m.flushes.Add(float64(flushesSinceLast))
}
