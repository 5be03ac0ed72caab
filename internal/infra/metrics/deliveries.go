package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		deliveriesTotal,
		dispatchAttemptsTotal,
		reconciledTotal,
	)
}

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_deliveries_total",
			Help: "Completed delivery attempts per final outcome (success/failed/pending_telegram_link).",
		},
		[]string{"outcome"},
	)

	dispatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_dispatch_attempts_total",
			Help: "Individual bot API dispatch calls by result.",
		},
		[]string{"result"},
	)

	reconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "link_reconciled_payments_total",
			Help: "Payments re-queued after a buyer linked their Telegram account.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncDelivery(outcome string) {
	deliveriesTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDispatchAttempt(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	dispatchAttemptsTotal.WithLabelValues(result).Inc()
}

func AddReconciled(n int) {
	if n > 0 {
		reconciledTotal.Add(float64(n))
	}
}
