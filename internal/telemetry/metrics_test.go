package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithNilRegistererSkipsRegistration(t *testing.T) {
	m := New(nil)
	require.NotNil(t, m)
	m.RoundsCompleted.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoundsCompleted))
}

func TestNewRegistersAgainstGivenRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)
	m.ActiveValidators.Set(4)

	mf, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mf)
}
