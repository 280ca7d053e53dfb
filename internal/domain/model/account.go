package model

import (
	"time"

	"telegram-tarot-subscription/internal/domain"
)

type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "free"
	SubscriptionTrial   SubscriptionType = "trial"
	SubscriptionPremium SubscriptionType = "premium"
	SubscriptionAdmin   SubscriptionType = "admin"
)

// Paid reports whether the type confers an entitlement at all. Unknown
// values default to free, so only the known paid tiers count.
func (t SubscriptionType) Paid() bool {
	switch t {
	case SubscriptionTrial, SubscriptionPremium, SubscriptionAdmin:
		return true
	}
	return false
}

// Account is one end-user identity. The backing store owns the record;
// an Account value is a snapshot valid for one logical operation.
type Account struct {
	ID               string // record id assigned by the store
	TelegramID       int64
	Username         string
	FirstName        string
	LastName         string
	LanguageCode     string
	SubscriptionType SubscriptionType
	// SubscriptionEnd is the sole arbiter of expiry. A nil value means
	// either "never granted" or "stored timestamp did not parse"; both
	// resolve to not-active.
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	IsActive          bool
	PredictionsCount  int
	TotalSpent        float64
	CreatedAt         time.Time
}

func NewAccount(tgID int64, username, firstName, lastName, lang string) (*Account, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if lang == "" {
		lang = "ru"
	}
	return &Account{
		TelegramID:       tgID,
		Username:         username,
		FirstName:        firstName,
		LastName:         lastName,
		LanguageCode:     lang,
		SubscriptionType: SubscriptionFree,
		IsActive:         true,
		PredictionsCount: 0,
		TotalSpent:       0,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// SubscriptionState is the mutable subscription slice of an Account. It is
// what a grant writes and what a compensating rollback restores.
type SubscriptionState struct {
	Type     SubscriptionType
	Start    *time.Time
	End      *time.Time
	IsActive bool
}

// SubscriptionSnapshot captures the current subscription fields so a failed
// multi-step operation can revert them.
func (a *Account) SubscriptionSnapshot() SubscriptionState {
	s := SubscriptionState{Type: a.SubscriptionType, IsActive: a.IsActive}
	if a.SubscriptionStart != nil {
		t := *a.SubscriptionStart
		s.Start = &t
	}
	if a.SubscriptionEnd != nil {
		t := *a.SubscriptionEnd
		s.End = &t
	}
	return s
}

// GrantState builds the subscription fields a redemption or payment writes:
// the clock starts now and runs for the given number of days.
func GrantState(subType SubscriptionType, days int, now time.Time) SubscriptionState {
	start := now
	end := now.Add(time.Duration(days) * 24 * time.Hour)
	return SubscriptionState{
		Type:     subType,
		Start:    &start,
		End:      &end,
		IsActive: true,
	}
}
