package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsTotal,
		redemptionConflictsTotal,
		redemptionRollbacksTotal,
		promoCodesIssuedTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Redemption attempts by status and reject reason.",
		},
		[]string{"status", "reason"},
	)

	redemptionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redemption_write_conflicts_total",
			Help: "Optimistic write conflicts during the recording step.",
		},
	)

	redemptionRollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemption_rollbacks_total",
			Help: "Compensating rollbacks of a granted subscription by result (ok/failed).",
		},
		[]string{"result"},
	)

	promoCodesIssuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promo_codes_issued_total",
			Help: "Promo codes successfully created.",
		},
	)
)

func IncRedemption(status, reason string) {
	if reason == "" {
		reason = "none"
	}
	redemptionsTotal.WithLabelValues(status, reason).Inc()
}

func IncRedemptionConflict() { redemptionConflictsTotal.Inc() }

func IncRedemptionRollback(result string) {
	redemptionRollbacksTotal.WithLabelValues(result).Inc()
}

func AddPromoCodesIssued(n int) { promoCodesIssuedTotal.Add(float64(n)) }
