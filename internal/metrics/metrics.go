package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crm"

// Metrics collects pipeline metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	importedMessages *prometheus.CounterVec
	importFailures   *prometheus.CounterVec
	summaries        *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	syncedRooms      *prometheus.CounterVec
}

// New registers the pipeline collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		importedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "messages_total",
			Help:      "Messages processed by the importer, by result (inserted or skipped).",
		}, []string{"result"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "import",
			Name:      "failures_total",
			Help:      "Import calls rejected, by error kind.",
		}, []string{"kind"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "generated_total",
			Help:      "Summaries produced, by source (llm, heuristic, fallback).",
		}, []string{"source"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "summary",
			Name:      "provider_duration_seconds",
			Help:      "Latency of AI provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"provider", "status"}),
		syncedRooms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "rooms_total",
			Help:      "Room sync attempts, by status.",
		}, []string{"status"}),
	}

	reg.MustRegister(m.importedMessages, m.importFailures, m.summaries, m.providerLatency, m.syncedRooms)
	return m
}

// ObserveImport records the outcome of one import call
func (m *Metrics) ObserveImport(inserted, skipped int) {
	if m == nil {
		return
	}
	m.importedMessages.WithLabelValues("inserted").Add(float64(inserted))
	m.importedMessages.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveImportFailure records a rejected import call
func (m *Metrics) ObserveImportFailure(kind string) {
	if m == nil {
		return
	}
	m.importFailures.WithLabelValues(kind).Inc()
}

// ObserveSummary records the source of a produced summary
func (m *Metrics) ObserveSummary(source string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(source).Inc()
}

// ObserveProviderCall records the latency of an AI provider call
func (m *Metrics) ObserveProviderCall(provider string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerLatency.WithLabelValues(provider, status).Observe(elapsed.Seconds())
}

// ObserveRoomSync records one room sync attempt
func (m *Metrics) ObserveRoomSync(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.syncedRooms.WithLabelValues(status).Inc()
}
