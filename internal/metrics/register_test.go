package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter(name string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "test", Name: name, Help: "test counter"})
}

func TestRegister_ReusesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := Register(reg, counter("events_total"))
	require.NoError(t, err)
	first.Inc()

	second, err := Register(reg, counter("events_total"))
	require.NoError(t, err)
	second.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(first))
}

func TestRegister_TypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := Register(reg, counter("events_total"))
	require.NoError(t, err)

	_, err = Register[*prometheus.CounterVec](reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "test", Name: "events_total", Help: "test counter"}, nil))
	assert.ErrorContains(t, err, "unexpected type")
}

func TestRegister_Conflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := Register(reg, counter("events_total"))
	require.NoError(t, err)

	_, err = Register(reg, prometheus.NewCounter(prometheus.CounterOpts{Namespace: "test", Name: "events_total", Help: "other help"}))
	assert.ErrorContains(t, err, "register collector")
}
