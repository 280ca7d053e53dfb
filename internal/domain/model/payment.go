package model

import (
	"time"

	"telegram-tarot-subscription/internal/domain"
)

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
)

// Payment records one completed purchase. The redemption engine never
// creates these; the payment flow does, and the amount also accumulates
// into Account.TotalSpent.
type Payment struct {
	ID               string
	AccountID        string
	Amount           float64
	Currency         string
	PaymentSystem    string
	PaymentID        string
	Status           PaymentStatus
	SubscriptionType SubscriptionType
	SubscriptionDays int
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

func NewPayment(accountID string, amount float64, system, externalID string, subType SubscriptionType, days int) (*Payment, error) {
	if accountID == "" || amount <= 0 || days <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &Payment{
		AccountID:        accountID,
		Amount:           amount,
		Currency:         "RUB",
		PaymentSystem:    system,
		PaymentID:        externalID,
		Status:           PaymentCompleted,
		SubscriptionType: subType,
		SubscriptionDays: days,
		CreatedAt:        now,
		CompletedAt:      &now,
	}, nil
}
