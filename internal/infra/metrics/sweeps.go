package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sweepsTotal,
		sweepPaymentsProcessed,
		sweepDurationSeconds,
	)
}

var (
	sweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_sweeps_total",
			Help: "Recovery sweep runs by result (completed/skipped/error).",
		},
		[]string{"result"},
	)

	sweepPaymentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "delivery_sweep_payments_processed_total",
			Help: "Payments picked up by recovery sweeps.",
		},
	)

	sweepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "delivery_sweep_duration_seconds",
			Help:    "Wall-clock duration of recovery sweeps.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)
)

func SweepCompleted(processed int, seconds float64) {
	sweepsTotal.WithLabelValues("completed").Inc()
	sweepPaymentsProcessed.Add(float64(processed))
	sweepDurationSeconds.Observe(seconds)
}

func SweepSkipped() { sweepsTotal.WithLabelValues("skipped").Inc() }
func SweepError()   { sweepsTotal.WithLabelValues("error").Inc() }
