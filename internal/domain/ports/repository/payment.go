package repository

import (
	"context"

	"telegram-tarot-subscription/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) (*model.Payment, error)
}
