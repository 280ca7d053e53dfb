package repository

import (
	"context"

	"telegram-tarot-subscription/internal/domain/model"
)

// PromoCodeRepository is the typed port over the promo code table.
// Lookups always hit the authoritative store; promo decisions are never
// served from a cache.
type PromoCodeRepository interface {
	// Create inserts a new code; a duplicate token returns
	// domain.ErrAlreadyExists so the generator can draw again.
	Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error)
	// FindByCode is case-insensitive.
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error)
	// ListAll returns every code, newest first.
	ListAll(ctx context.Context) ([]*model.PromoCode, error)
	// IncrementUsage adds one use, predicated on the used_count observed on
	// the passed snapshot ("increment only if still below the limit", not
	// "check then increment"). When the increment consumes the last use the
	// same write flips is_active to false. Returns domain.ErrConflict if
	// another redemption got there first.
	IncrementUsage(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error)
	// Deactivate is the operator kill switch for a code.
	Deactivate(ctx context.Context, id string) error
}
