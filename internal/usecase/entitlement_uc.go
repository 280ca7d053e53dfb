package usecase

import (
	"time"

	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/infra/metrics"
)

// Compile-time check
var _ EntitlementUseCase = (*entitlementUC)(nil)

// EntitlementUseCase decides whether an account may consume the paid
// feature at a given instant. It is pure: no I/O, no clock reads, no side
// effects beyond a metrics counter, so identical inputs always yield
// identical results.
type EntitlementUseCase interface {
	Evaluate(acc *model.Account, now time.Time) model.EntitlementStatus
	CanConsume(acc *model.Account, now time.Time) bool
}

type entitlementUC struct {
	freeLimit int
}

func NewEntitlementUseCase(freeLimit int) *entitlementUC {
	return &entitlementUC{freeLimit: freeLimit}
}

// Evaluate computes subscription status and remaining quota.
//
// A subscription is active iff the account holds a paid tier, the operator
// kill switch is on, and subscription_end is known and strictly in the
// future. A missing or unparseable end date resolves to not-active: an
// ambiguous record must never grant unmetered access.
func (uc *entitlementUC) Evaluate(acc *model.Account, now time.Time) model.EntitlementStatus {
	status := model.EntitlementStatus{}
	if acc != nil && acc.SubscriptionType.Paid() && acc.IsActive &&
		acc.SubscriptionEnd != nil && acc.SubscriptionEnd.After(now) {
		status.HasActiveSubscription = true
		status.Unlimited = true
	} else {
		used := 0
		if acc != nil {
			used = acc.PredictionsCount
		}
		remaining := uc.freeLimit - used
		if remaining < 0 {
			remaining = 0
		}
		status.RemainingPredictions = remaining
	}
	metrics.IncEntitlementCheck(status.CanConsume())
	return status
}

func (uc *entitlementUC) CanConsume(acc *model.Account, now time.Time) bool {
	return uc.Evaluate(acc, now).CanConsume()
}
