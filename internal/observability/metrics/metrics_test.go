package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.ObserveBooking("booked")
	m.ObserveBooking("booked")
	m.ObserveBooking("conflict")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("booked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.bookingsTotal.WithLabelValues("conflict")))
}

func TestObserveTransitionAndConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulerMetrics(reg)

	m.ObserveTransition("pending", "confirmed")
	m.ObserveConflict()
	m.ObserveAdmissionLatency(0.02)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transitionsTotal.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.conflictsTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "scheduler_appointments_admission_latency_seconds")
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.ObserveBooking("booked")
	m.ObserveTransition("pending", "confirmed")
	m.ObserveConflict()
	m.ObserveAdmissionLatency(0.5)
}
