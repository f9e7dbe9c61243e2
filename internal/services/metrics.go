package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

// Metrics records registration transitions on its own registry.
type Metrics struct {
	Registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	durations   *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registration_transitions_total",
				Help: "Registration transitions by outcome",
			},
			[]string{"transition", "outcome"},
		),
		durations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "registration_transition_duration_seconds",
				Help:    "Duration of registration transitions",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10},
			},
			[]string{"transition"},
		),
	}
}

// observe is safe on a nil receiver so services can run without metrics.
func (m *Metrics) observe(transition string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, outcome(err)).Inc()
	m.durations.WithLabelValues(transition).Observe(time.Since(start).Seconds())
}

var outcomes = []struct {
	err   error
	label string
}{
	{models.ErrValidation, "validation"},
	{models.ErrNotFound, "not_found"},
	{models.ErrExpired, "expired"},
	{models.ErrMismatch, "mismatch"},
	{models.ErrConflict, "conflict"},
	{models.ErrNotPreProvisioned, "not_pre_provisioned"},
	{models.ErrDelivery, "delivery"},
	{models.ErrProvisioning, "provisioning"},
	{models.ErrInvalidCredentials, "invalid_credentials"},
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, o := range outcomes {
		if errors.Is(err, o.err) {
			return o.label
		}
	}
	return "error"
}
