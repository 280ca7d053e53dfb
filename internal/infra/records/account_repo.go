package records

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/domain/ports/store"
)

const accountsTable = "users"

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	st  store.Store
	log *zerolog.Logger
}

func NewAccountRepo(st store.Store, logger *zerolog.Logger) repository.AccountRepository {
	return &accountRepo{st: st, log: logger}
}

func (r *accountRepo) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	rec := store.Record{
		"telegram_id":       acc.TelegramID,
		"username":          acc.Username,
		"first_name":        acc.FirstName,
		"last_name":         acc.LastName,
		"language_code":     acc.LanguageCode,
		"subscription_type": string(acc.SubscriptionType),
		"is_active":         acc.IsActive,
		"predictions_count": acc.PredictionsCount,
		"total_spent":       acc.TotalSpent,
		"created_at":        fmtTime(acc.CreatedAt),
	}
	out, err := r.st.Insert(ctx, accountsTable, rec)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return accountFromRecord(out), nil
}

func (r *accountRepo) FindByTelegramID(ctx context.Context, tgID int64) (*model.Account, error) {
	recs, err := r.st.Find(ctx, accountsTable, store.Filter{"telegram_id": tgID}, nil)
	if err != nil {
		return nil, fmt.Errorf("find account by telegram id: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return accountFromRecord(recs[0]), nil
}

func (r *accountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	recs, err := r.st.Find(ctx, accountsTable, store.Filter{"id": idValue(id)}, nil)
	if err != nil {
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	if len(recs) == 0 {
		return nil, domain.ErrNotFound
	}
	return accountFromRecord(recs[0]), nil
}

// UpdateSubscription is unconditional with respect to the subscription
// fields themselves: grants, operator toggles and rollbacks all want
// last-writer-wins semantics there.
func (r *accountRepo) UpdateSubscription(ctx context.Context, id string, sub model.SubscriptionState) (*model.Account, error) {
	patch := store.Record{
		"subscription_type":  string(sub.Type),
		"subscription_start": fmtTimePtr(sub.Start),
		"subscription_end":   fmtTimePtr(sub.End),
		"is_active":          sub.IsActive,
		"updated_at":         fmtTime(time.Now()),
	}
	out, err := r.st.ConditionalUpdate(ctx, accountsTable, idValue(id), nil, patch)
	if err != nil {
		return nil, fmt.Errorf("update subscription: %w", err)
	}
	return accountFromRecord(out), nil
}

// IncrementPredictions bumps the counter only if it still holds the value
// observed on acc, so concurrent consumptions never lose an update.
func (r *accountRepo) IncrementPredictions(ctx context.Context, acc *model.Account) (*model.Account, error) {
	predicate := store.Filter{"predictions_count": acc.PredictionsCount}
	patch := store.Record{
		"predictions_count": acc.PredictionsCount + 1,
		"updated_at":        fmtTime(time.Now()),
	}
	out, err := r.st.ConditionalUpdate(ctx, accountsTable, idValue(acc.ID), predicate, patch)
	if err != nil {
		return nil, fmt.Errorf("increment predictions: %w", err)
	}
	return accountFromRecord(out), nil
}

func (r *accountRepo) AddSpent(ctx context.Context, acc *model.Account, amount float64) (*model.Account, error) {
	predicate := store.Filter{"total_spent": acc.TotalSpent}
	patch := store.Record{
		"total_spent": acc.TotalSpent + amount,
		"updated_at":  fmtTime(time.Now()),
	}
	out, err := r.st.ConditionalUpdate(ctx, accountsTable, idValue(acc.ID), predicate, patch)
	if err != nil {
		return nil, fmt.Errorf("add spent: %w", err)
	}
	return accountFromRecord(out), nil
}

func accountFromRecord(rec store.Record) *model.Account {
	subType := model.SubscriptionType(asString(rec, "subscription_type"))
	if subType == "" {
		subType = model.SubscriptionFree
	}
	var created time.Time
	if t := asTime(rec, "created_at"); t != nil {
		created = *t
	}
	return &model.Account{
		ID:                asString(rec, "id"),
		TelegramID:        asInt64(rec, "telegram_id", 0),
		Username:          asString(rec, "username"),
		FirstName:         asString(rec, "first_name"),
		LastName:          asString(rec, "last_name"),
		LanguageCode:      asString(rec, "language_code"),
		SubscriptionType:  subType,
		SubscriptionStart: asTime(rec, "subscription_start"),
		SubscriptionEnd:   asTime(rec, "subscription_end"),
		IsActive:          asBool(rec, "is_active", true),
		PredictionsCount:  asInt(rec, "predictions_count", 0),
		TotalSpent:        asFloat(rec, "total_spent", 0),
		CreatedAt:         created,
	}
}
