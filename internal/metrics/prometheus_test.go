package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCustomMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	InitCustomMetrics(reg)

	LoginSuccessTotal.Inc()
	ActiveSessionsGauge.Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["solosso_logins_success_total"])
	assert.True(t, names["solosso_active_sessions"])

	// Registering twice only warns.
	assert.NotPanics(t, func() { InitCustomMetrics(reg) })
	assert.NotPanics(t, func() { InitCustomMetrics(nil) })
}
