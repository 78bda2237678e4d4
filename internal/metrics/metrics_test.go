package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveImport(3, 2)
	m.ObserveImport(1, 0)
	m.ObserveSummary("fallback")
	m.ObserveImportFailure("invalid_message")
	m.ObserveRoomSync(errors.New("boom"))
	m.ObserveProviderCall("openai", 150*time.Millisecond, nil)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.importedMessages.WithLabelValues("inserted")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.importedMessages.WithLabelValues("skipped")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.summaries.WithLabelValues("fallback")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importFailures.WithLabelValues("invalid_message")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.syncedRooms.WithLabelValues("error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.providerLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveImport(1, 1)
		m.ObserveSummary("llm")
		m.ObserveProviderCall("anthropic", time.Second, nil)
		m.ObserveRoomSync(nil)
		m.ObserveImportFailure("not_found")
	})
}
