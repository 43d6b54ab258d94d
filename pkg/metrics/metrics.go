// Package metrics exposes the progress of a running generation as
// Prometheus gauges, for runs long enough to be worth scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercury131/ps-disk-speed-tester/pkg/engine"
)

// Metrics holds the collectors for one run. Registration goes through
// an own registry so the default one stays untouched.
type Metrics struct {
	Namespace string
	Labels    map[string]string

	registry *prometheus.Registry
	handler  http.Handler

	bytesWritten   prometheus.Gauge
	bytesTotal     prometheus.Gauge
	chunks         prometheus.Gauge
	chunkSpeed     prometheus.Gauge
	elapsedSeconds prometheus.Gauge
}

func (m *Metrics) Init() {
	m.registry = prometheus.NewRegistry()
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   m.Namespace,
			Subsystem:   "run",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels(m.Labels),
		})
		m.registry.MustRegister(g)
		return g
	}

	m.bytesWritten = gauge("bytes_written", "Bytes written to the target file so far.")
	m.bytesTotal = gauge("bytes_total", "Bytes the run will write in total.")
	m.chunks = gauge("chunks", "Chunk writes performed so far.")
	m.chunkSpeed = gauge("chunk_speed_mbs", "Throughput of the most recent chunk write in MB/s.")
	m.elapsedSeconds = gauge("elapsed_seconds", "Wall clock seconds since the first write.")
}

// OnProgress folds one engine progress point into the gauges.
func (m *Metrics) OnProgress(p engine.Progress) {
	m.bytesWritten.Set(float64(p.BytesWritten))
	m.bytesTotal.Set(float64(p.BytesTotal))
	m.chunks.Set(float64(p.Chunks))
	m.chunkSpeed.Set(p.LastMBs)
	m.elapsedSeconds.Set(p.Elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return m.handler
}
