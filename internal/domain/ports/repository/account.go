package repository

import (
	"context"

	"telegram-tarot-subscription/internal/domain/model"
)

// AccountRepository is the typed port over the account table.
//
// IncrementPredictions and AddSpent are conditional writes: they succeed
// only if the record still carries the counter value observed on the passed
// snapshot, and return domain.ErrConflict otherwise. Callers own the retry
// loop.
type AccountRepository interface {
	Create(ctx context.Context, acc *model.Account) (*model.Account, error)
	FindByTelegramID(ctx context.Context, tgID int64) (*model.Account, error)
	FindByID(ctx context.Context, id string) (*model.Account, error)
	// UpdateSubscription overwrites the subscription fields. Used by grants,
	// operator deactivation and compensating rollbacks.
	UpdateSubscription(ctx context.Context, id string, sub model.SubscriptionState) (*model.Account, error)
	// IncrementPredictions adds one to predictions_count, predicated on the
	// count observed on acc.
	IncrementPredictions(ctx context.Context, acc *model.Account) (*model.Account, error)
	// AddSpent accumulates a completed payment amount, predicated on the
	// total observed on acc.
	AddSpent(ctx context.Context, acc *model.Account, amount float64) (*model.Account, error)
}
