package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/aq2208/payflow/internal/entity"
)

var (
	paymentAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payflow",
			Name:      "payment_attempts_total",
			Help:      "Payment initiation attempts by gateway and outcome",
		},
		[]string{"gateway", "outcome"},
	)

	// 0 = closed, 1 = open, 2 = half-open
	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "payflow",
			Name:      "gateway_breaker_state",
			Help:      "Primary gateway circuit breaker state",
		},
	)
)

func recordAttempt(gw domain.GatewayKind, status domain.AttemptStatus, err error) {
	outcome := string(status)
	if err != nil {
		outcome = "error"
	}
	paymentAttempts.WithLabelValues(string(gw), outcome).Inc()
}
