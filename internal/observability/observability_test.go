package observability

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), `"message":"shown"`)
	assert.Contains(t, buf.String(), `"service":"checkind"`)
}

func TestComponent_NilParent(t *testing.T) {
	l := Component(nil, "desk")
	l.Info().Msg("discarded")
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.SessionStarted()
	m.SessionStarted()
	m.SessionStopped()
	m.Commit("checked_in")
	m.Commit("checked_in")
	m.Capture("camera", "decoded")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CommitsTotal.WithLabelValues("checked_in")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CapturesTotal.WithLabelValues("camera", "decoded")))
}
