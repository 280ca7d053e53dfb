package model

import (
	"strings"
	"time"

	"telegram-tarot-subscription/internal/domain"
)

// PromoCode is a single- or multi-use code that grants a subscription when
// redeemed. The code token is the natural key and is stored upper-cased.
type PromoCode struct {
	ID               string
	Code             string
	SubscriptionType SubscriptionType
	Days             int
	MaxUses          int
	UsedCount        int
	IsActive         bool
	CreatedBy        string
	Description      string
	CreatedAt        time.Time
	ExpiresAt        *time.Time
}

func NewPromoCode(code string, subType SubscriptionType, days, maxUses int, createdBy, description string) (*PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || days <= 0 || maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if subType == "" {
		subType = SubscriptionPremium
	}
	return &PromoCode{
		Code:             code,
		SubscriptionType: subType,
		Days:             days,
		MaxUses:          maxUses,
		UsedCount:        0,
		IsActive:         true,
		CreatedBy:        createdBy,
		Description:      description,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// Exhausted reports whether every permitted use has been consumed.
func (p *PromoCode) Exhausted() bool { return p.UsedCount >= p.MaxUses }

// ExpiredAt reports whether the code is past its optional expiry at the
// given instant. A code expiring exactly at now is expired.
func (p *PromoCode) ExpiredAt(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// PromoStats is the aggregate view over all issued codes.
type PromoStats struct {
	TotalCodes  int `json:"total_codes"`
	ActiveCodes int `json:"active_codes"`
	UsedCodes   int `json:"used_codes"`
	TotalUses   int `json:"total_uses"`
}

// BatchReport tells the issuing admin exactly what happened: how many codes
// were requested and which ones were actually created.
type BatchReport struct {
	Requested int      `json:"requested"`
	Issued    []string `json:"issued"`
}
