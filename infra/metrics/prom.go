package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "schedcal/core/metrics"
)

// PromSink records scheduling run results in Prometheus metrics.
type PromSink struct {
	runs         *prometheus.CounterVec
	appointments *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	objective    prometheus.Gauge
}

// NewPromSink registers scheduling metrics on the provided Prometheus
// registerer. If reg is nil, the default registerer is used. If the
// collectors are already registered, the existing ones are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_runs_total",
		Help: "Total number of scheduling runs",
	}, []string{"status"})
	appointments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduling_appointments_total",
		Help: "Appointments placed or left unscheduled per run",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduling_solve_duration_seconds",
		Help:    "Wall-clock duration of the solve phase",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	objective := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scheduling_last_objective",
		Help: "Objective value of the most recent run",
	})

	for _, c := range []prometheus.Collector{runs, appointments, duration, objective} {
		if err := reg.Register(c); err != nil {
			are, ok := err.(prometheus.AlreadyRegisteredError)
			if !ok {
				return nil, err
			}
			switch existing := are.ExistingCollector.(type) {
			case *prometheus.CounterVec:
				if c == runs {
					runs = existing
				} else {
					appointments = existing
				}
			case *prometheus.HistogramVec:
				duration = existing
			case prometheus.Gauge:
				objective = existing
			}
		}
	}
	return &PromSink{runs: runs, appointments: appointments, duration: duration, objective: objective}, nil
}

// RecordSolveResult increments the run counters and observes the solve
// duration.
func (s *PromSink) RecordSolveResult(res coremetrics.SolveResult) error {
	s.runs.WithLabelValues(res.Status).Inc()
	s.appointments.WithLabelValues("scheduled").Add(float64(res.Scheduled))
	s.appointments.WithLabelValues("unscheduled").Add(float64(res.Unscheduled))
	s.duration.WithLabelValues(res.Status).Observe(res.Duration.Seconds())
	s.objective.Set(float64(res.Objective))
	return nil
}
