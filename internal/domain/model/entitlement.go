package model

// EntitlementStatus answers "may this account consume the paid feature
// right now, and how many units are left".
type EntitlementStatus struct {
	HasActiveSubscription bool `json:"has_active_subscription"`
	// Unlimited is set while a subscription is active; RemainingPredictions
	// is meaningful only when it is false.
	Unlimited            bool `json:"unlimited"`
	RemainingPredictions int  `json:"remaining_predictions"`
}

// CanConsume reports whether at least one more unit may be produced.
func (s EntitlementStatus) CanConsume() bool {
	return s.Unlimited || s.RemainingPredictions > 0
}

// AccountStats is the per-account summary shown to the user and to admin
// tooling.
type AccountStats struct {
	PredictionsCount      int              `json:"predictions_count"`
	RemainingPredictions  int              `json:"remaining_predictions"`
	Unlimited             bool             `json:"unlimited"`
	HasActiveSubscription bool             `json:"has_active_subscription"`
	SubscriptionType      SubscriptionType `json:"subscription_type"`
	SubscriptionEnd       string           `json:"subscription_end"` // dd.mm.yyyy or empty
	TotalSpent            float64          `json:"total_spent"`
}
