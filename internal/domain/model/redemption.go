package model

import "time"

type RedemptionStatus string

const (
	RedemptionSuccess  RedemptionStatus = "success"
	RedemptionRejected RedemptionStatus = "rejected"
	RedemptionFailed   RedemptionStatus = "failed"
)

// RejectReason identifies which validation check turned a redemption down,
// so the caller can present a precise message.
type RejectReason string

const (
	RejectNotFound     RejectReason = "not_found"
	RejectInactive     RejectReason = "inactive"
	RejectLimitReached RejectReason = "limit_reached"
	RejectExpired      RejectReason = "expired"
)

// RedemptionResult is the outcome of one redeem attempt.
//
// Rejected results are terminal user-correctable answers. Failed results
// mean the redemption did not complete for infrastructure reasons and is
// safe to retry: validation is re-run fresh on every call and a partial
// grant has been rolled back before the result is returned.
type RedemptionResult struct {
	Status RedemptionStatus `json:"status"`
	Reason RejectReason     `json:"reason,omitempty"`
	// Set on success.
	SubscriptionType SubscriptionType `json:"subscription_type,omitempty"`
	SubscriptionEnd  *time.Time       `json:"subscription_end,omitempty"`
	Days             int              `json:"days,omitempty"`
}

func RedemptionRejectedWith(reason RejectReason) *RedemptionResult {
	return &RedemptionResult{Status: RedemptionRejected, Reason: reason}
}
