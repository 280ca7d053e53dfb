package records

import (
	"context"
	"fmt"

	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/domain/ports/store"
)

const paymentsTable = "payments"

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct {
	st store.Store
}

func NewPaymentRepo(st store.Store) repository.PaymentRepository {
	return &paymentRepo{st: st}
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	rec := store.Record{
		"user_id":           idValue(p.AccountID),
		"amount":            p.Amount,
		"currency":          p.Currency,
		"payment_system":    p.PaymentSystem,
		"payment_id":        p.PaymentID,
		"status":            string(p.Status),
		"subscription_type": string(p.SubscriptionType),
		"subscription_days": p.SubscriptionDays,
		"created_at":        fmtTime(p.CreatedAt),
		"completed_at":      fmtTimePtr(p.CompletedAt),
	}
	out, err := r.st.Insert(ctx, paymentsTable, rec)
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	cp := *p
	cp.ID = asString(out, "id")
	return &cp, nil
}
