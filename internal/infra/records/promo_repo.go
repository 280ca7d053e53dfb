package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/domain/ports/store"
)

const promoCodesTable = "promo_codes"

var _ repository.PromoCodeRepository = (*promoRepo)(nil)

type promoRepo struct {
	st  store.Store
	log *zerolog.Logger
}

func NewPromoCodeRepo(st store.Store, logger *zerolog.Logger) repository.PromoCodeRepository {
	return &promoRepo{st: st, log: logger}
}

func (r *promoRepo) Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error) {
	rec := store.Record{
		"code":              strings.ToUpper(code.Code),
		"subscription_type": string(code.SubscriptionType),
		"days":              code.Days,
		"max_uses":          code.MaxUses,
		"used_count":        code.UsedCount,
		"is_active":         code.IsActive,
		"created_by":        code.CreatedBy,
		"description":       code.Description,
		"created_at":        fmtTime(code.CreatedAt),
	}
	if code.ExpiresAt != nil {
		rec["expires_at"] = fmtTime(*code.ExpiresAt)
	}
	out, err := r.st.Insert(ctx, promoCodesTable, rec)
	if err != nil {
		return nil, fmt.Errorf("create promo code: %w", err)
	}
	return promoFromRecord(out), nil
}

func (r *promoRepo) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	token := strings.ToUpper(strings.TrimSpace(code))
	recs, err := r.st.Find(ctx, promoCodesTable, store.Filter{"code": token}, nil)
	if err != nil {
		return nil, fmt.Errorf("find promo code: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return promoFromRecord(recs[0]), nil
}

func (r *promoRepo) ListAll(ctx context.Context) ([]*model.PromoCode, error) {
	recs, err := r.st.Find(ctx, promoCodesTable, nil, &store.ListOptions{OrderBy: "created_at", Desc: true})
	if err != nil {
		return nil, fmt.Errorf("list promo codes: %w", err)
	}
	out := make([]*model.PromoCode, 0, len(recs))
	for _, rec := range recs {
		out = append(out, promoFromRecord(rec))
	}
	return out, nil
}

// IncrementUsage performs the critical conditional write: "one more use,
// but only if used_count is still what we read". Consuming the last use
// flips is_active in the same write so no separate deactivation can race.
func (r *promoRepo) IncrementUsage(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error) {
	if code.Exhausted() {
		return nil, domain.ErrConflict
	}
	patch := store.Record{
		"used_count": code.UsedCount + 1,
		"updated_at": fmtTime(time.Now()),
	}
	if code.UsedCount+1 >= code.MaxUses {
		patch["is_active"] = false
	}
	predicate := store.Filter{"used_count": code.UsedCount}
	out, err := r.st.ConditionalUpdate(ctx, promoCodesTable, idValue(code.ID), predicate, patch)
	if err != nil {
		return nil, fmt.Errorf("increment promo usage: %w", err)
	}
	return promoFromRecord(out), nil
}

func (r *promoRepo) Deactivate(ctx context.Context, id string) error {
	patch := store.Record{
		"is_active":  false,
		"updated_at": fmtTime(time.Now()),
	}
	if _, err := r.st.ConditionalUpdate(ctx, promoCodesTable, idValue(id), nil, patch); err != nil {
		return fmt.Errorf("deactivate promo code: %w", err)
	}
	return nil
}

func promoFromRecord(rec store.Record) *model.PromoCode {
	subType := model.SubscriptionType(asString(rec, "subscription_type"))
	if subType == "" {
		subType = model.SubscriptionPremium
	}
	var created time.Time
	if t := asTime(rec, "created_at"); t != nil {
		created = *t
	}
	return &model.PromoCode{
		ID:               asString(rec, "id"),
		Code:             strings.ToUpper(asString(rec, "code")),
		SubscriptionType: subType,
		Days:             asInt(rec, "days", 30),
		MaxUses:          asInt(rec, "max_uses", 1),
		UsedCount:        asInt(rec, "used_count", 0),
		IsActive:         asBool(rec, "is_active", true),
		CreatedBy:        asString(rec, "created_by"),
		Description:      asString(rec, "description"),
		CreatedAt:        created,
		ExpiresAt:        asTime(rec, "expires_at"),
	}
}
