package records

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	red "telegram-tarot-subscription/internal/infra/redis"
	"telegram-tarot-subscription/internal/infra/metrics"
)

var _ repository.AccountRepository = (*accountRepoCacheDecorator)(nil)

// accountRepoCacheDecorator keeps a short-lived advisory copy of account
// records in Redis. It is read-through for lookups and invalidated on
// every mutation this process performs. It is never consulted for promo
// code decisions and never substitutes for a conditional write: all
// concurrency-sensitive reads re-fetch through the inner repo.
type accountRepoCacheDecorator struct {
	inner repository.AccountRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewAccountRepoCacheDecorator(inner repository.AccountRepository, cache red.RedisClient, ttl time.Duration) repository.AccountRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &accountRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func tgKey(tgID int64) string { return fmt.Sprintf("acct:tgid:%d", tgID) }
func idKey(id string) string  { return fmt.Sprintf("acct:id:%s", id) }

func (d *accountRepoCacheDecorator) invalidate(ctx context.Context, acc *model.Account) {
	if acc == nil {
		return
	}
	_ = d.cache.Del(ctx, idKey(acc.ID), tgKey(acc.TelegramID))
}

func (d *accountRepoCacheDecorator) warm(ctx context.Context, acc *model.Account) {
	if acc == nil {
		return
	}
	bytes, err := json.Marshal(acc)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, idKey(acc.ID), bytes, d.ttl)
	_ = d.cache.Set(ctx, tgKey(acc.TelegramID), bytes, d.ttl)
}

func (d *accountRepoCacheDecorator) lookup(ctx context.Context, key string) *model.Account {
	val, err := d.cache.Get(ctx, key)
	if err != nil {
		metrics.IncCacheRequest("account", "miss")
		return nil
	}
	var acc model.Account
	if json.Unmarshal([]byte(val), &acc) != nil {
		metrics.IncCacheRequest("account", "miss")
		return nil
	}
	metrics.IncCacheRequest("account", "hit")
	return &acc
}

func (d *accountRepoCacheDecorator) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	created, err := d.inner.Create(ctx, acc)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, created)
	return created, nil
}

func (d *accountRepoCacheDecorator) FindByTelegramID(ctx context.Context, tgID int64) (*model.Account, error) {
	if acc := d.lookup(ctx, tgKey(tgID)); acc != nil {
		return acc, nil
	}
	acc, err := d.inner.FindByTelegramID(ctx, tgID)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, acc)
	return acc, nil
}

func (d *accountRepoCacheDecorator) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if acc := d.lookup(ctx, idKey(id)); acc != nil {
		return acc, nil
	}
	acc, err := d.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d.warm(ctx, acc)
	return acc, nil
}

func (d *accountRepoCacheDecorator) UpdateSubscription(ctx context.Context, id string, sub model.SubscriptionState) (*model.Account, error) {
	updated, err := d.inner.UpdateSubscription(ctx, id, sub)
	if err != nil {
		return nil, err
	}
	d.invalidate(ctx, updated)
	return updated, nil
}

// IncrementPredictions bypasses the cached snapshot entirely: the inner
// repo's conditional write is the authority. The cache only needs to
// forget the stale counter afterwards.
func (d *accountRepoCacheDecorator) IncrementPredictions(ctx context.Context, acc *model.Account) (*model.Account, error) {
	updated, err := d.inner.IncrementPredictions(ctx, acc)
	if err != nil {
		// A conflict means another writer moved the counter; drop the stale
		// copy so the retry's re-read hits the store.
		d.invalidate(ctx, acc)
		return nil, err
	}
	d.invalidate(ctx, updated)
	return updated, nil
}

func (d *accountRepoCacheDecorator) AddSpent(ctx context.Context, acc *model.Account, amount float64) (*model.Account, error) {
	updated, err := d.inner.AddSpent(ctx, acc, amount)
	if err != nil {
		d.invalidate(ctx, acc)
		return nil, err
	}
	d.invalidate(ctx, updated)
	return updated, nil
}
