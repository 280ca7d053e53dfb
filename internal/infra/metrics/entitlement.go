package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		entitlementChecksTotal,
		predictionsRecordedTotal,
		quotaWriteConflictsTotal,
	)
}

var (
	entitlementChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_checks_total",
			Help: "Entitlement evaluations by outcome (allowed=true/false).",
		},
		[]string{"allowed"},
	)

	predictionsRecordedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "predictions_recorded_total",
			Help: "Successfully recorded prediction consumptions.",
		},
	)

	quotaWriteConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_write_conflicts_total",
			Help: "Optimistic write conflicts seen by the quota ledger (including retried ones).",
		},
	)
)

func IncEntitlementCheck(allowed bool) {
	entitlementChecksTotal.WithLabelValues(strconv.FormatBool(allowed)).Inc()
}

func IncPredictionRecorded() { predictionsRecordedTotal.Inc() }

func IncQuotaConflict() { quotaWriteConflictsTotal.Inc() }
