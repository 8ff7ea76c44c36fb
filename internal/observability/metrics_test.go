package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.Generations.WithLabelValues("success").Inc()
	m.RemindersSent.Inc()

	n, err := testutil.GatherAndCount(reg, "patrol_report_generations_total", "patrol_report_reminders_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewMetricsForTestingIsIndependent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()
	a.RateLimited.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RateLimited))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RateLimited))
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "patrol-report", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
