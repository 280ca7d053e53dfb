package records

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/store"
	"telegram-tarot-subscription/internal/infra/store/memory"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

func newAccountFixture(t *testing.T) (*memory.Store, *model.Account) {
	t.Helper()
	st := memory.NewStore().WithUnique("users", "telegram_id")
	repo := NewAccountRepo(st, newLogger())
	nu, err := model.NewAccount(42, "alice", "Alice", "", "ru")
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	acc, err := repo.Create(context.Background(), nu)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return st, acc
}

func TestScalarHelpers(t *testing.T) {
	rec := store.Record{
		"f":   float64(42),
		"i64": int64(7),
		"i32": int32(3),
		"s":   "9",
		"bs":  "true",
	}
	if got := asInt(rec, "f", 0); got != 42 {
		t.Errorf("asInt(float64) = %d", got)
	}
	if got := asInt64(rec, "i64", 0); got != 7 {
		t.Errorf("asInt64 = %d", got)
	}
	if got := asString(rec, "i32"); got != "3" {
		t.Errorf("asString(int32) = %q", got)
	}
	if got := asFloat(rec, "s", 0); got != 9 {
		t.Errorf("asFloat(string) = %v", got)
	}
	if got := asBool(rec, "bs", false); !got {
		t.Error("asBool(string) = false")
	}
	if got := asInt(rec, "missing", 5); got != 5 {
		t.Errorf("asInt default = %d", got)
	}
}

func TestAsTime(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	t.Run("time value passes through", func(t *testing.T) {
		got := asTime(store.Record{"t": now}, "t")
		if got == nil || !got.Equal(now) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("string is normalized", func(t *testing.T) {
		got := asTime(store.Record{"t": "2024-03-15 10:30:00"}, "t")
		if got == nil || !got.Equal(now) {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("bad values map to nil", func(t *testing.T) {
		for _, v := range []any{nil, "", "garbage", 12345} {
			if got := asTime(store.Record{"t": v}, "t"); got != nil {
				t.Errorf("asTime(%v) = %v, want nil", v, got)
			}
		}
	})
}

func TestIDValue(t *testing.T) {
	if got := idValue("123"); got != int64(123) {
		t.Errorf("idValue(numeric) = %v (%T)", got, got)
	}
	if got := idValue("3d1f0e9a"); got != "3d1f0e9a" {
		t.Errorf("idValue(uuid-ish) = %v", got)
	}
}

func TestAccountRepo_RoundTrip(t *testing.T) {
	_, acc := newAccountFixture(t)
	if acc.ID == "" {
		t.Fatal("store did not assign an id")
	}
	if acc.SubscriptionType != model.SubscriptionFree || !acc.IsActive {
		t.Fatalf("unexpected defaults: %+v", acc)
	}

	st := memory.NewStore()
	repo := NewAccountRepo(st, newLogger())
	if _, err := repo.FindByTelegramID(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("absent account err = %v, want ErrNotFound", err)
	}
}

func TestAccountRepo_DefaultsForSparseRecords(t *testing.T) {
	st := memory.NewStore()
	repo := NewAccountRepo(st, newLogger())

	// A row written by the dashboard, missing most columns.
	if _, err := st.Insert(context.Background(), "users", store.Record{"telegram_id": int64(7)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	acc, err := repo.FindByTelegramID(context.Background(), 7)
	if err != nil {
		t.Fatalf("FindByTelegramID: %v", err)
	}
	if acc.SubscriptionType != model.SubscriptionFree {
		t.Errorf("type = %q, want free", acc.SubscriptionType)
	}
	if !acc.IsActive {
		t.Error("missing is_active must default to true")
	}
	if acc.SubscriptionEnd != nil {
		t.Error("missing subscription_end must map to nil")
	}
}

func TestAccountRepo_BadTimestampMapsToNil(t *testing.T) {
	st := memory.NewStore()
	repo := NewAccountRepo(st, newLogger())
	_, err := st.Insert(context.Background(), "users", store.Record{
		"telegram_id":       int64(7),
		"subscription_type": "premium",
		"subscription_end":  "not-a-timestamp",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	acc, err := repo.FindByTelegramID(context.Background(), 7)
	if err != nil {
		t.Fatalf("FindByTelegramID: %v", err)
	}
	if acc.SubscriptionEnd != nil {
		t.Fatalf("unparseable timestamp produced %v, want nil", acc.SubscriptionEnd)
	}
}

func TestAccountRepo_IncrementPredictions(t *testing.T) {
	st := memory.NewStore().WithUnique("users", "telegram_id")
	repo := NewAccountRepo(st, newLogger())
	nu, _ := model.NewAccount(42, "", "", "", "")
	acc, err := repo.Create(context.Background(), nu)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := repo.IncrementPredictions(context.Background(), acc)
	if err != nil {
		t.Fatalf("IncrementPredictions: %v", err)
	}
	if updated.PredictionsCount != 1 {
		t.Fatalf("count = %d, want 1", updated.PredictionsCount)
	}

	// The original snapshot is now stale; a second increment from it must
	// conflict rather than overwrite.
	if _, err := repo.IncrementPredictions(context.Background(), acc); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale increment err = %v, want ErrConflict", err)
	}
}

func TestAccountRepo_UpdateAndRestoreSubscription(t *testing.T) {
	st := memory.NewStore()
	repo := NewAccountRepo(st, newLogger())
	nu, _ := model.NewAccount(42, "", "", "", "")
	acc, err := repo.Create(context.Background(), nu)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	before := acc.SubscriptionSnapshot()

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	granted, err := repo.UpdateSubscription(context.Background(), acc.ID, model.GrantState(model.SubscriptionPremium, 30, now))
	if err != nil {
		t.Fatalf("UpdateSubscription: %v", err)
	}
	if granted.SubscriptionType != model.SubscriptionPremium || granted.SubscriptionEnd == nil {
		t.Fatalf("grant not applied: %+v", granted)
	}

	restored, err := repo.UpdateSubscription(context.Background(), acc.ID, before)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.SubscriptionType != model.SubscriptionFree || restored.SubscriptionEnd != nil {
		t.Fatalf("restore did not revert: %+v", restored)
	}
}

func TestPromoRepo_CreateAndFind(t *testing.T) {
	st := memory.NewStore().WithUnique("promo_codes", "code")
	repo := NewPromoCodeRepo(st, newLogger())
	pc, _ := model.NewPromoCode("tarot2024", model.SubscriptionPremium, 30, 1, "admin", "")

	created, err := repo.Create(context.Background(), pc)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Code != "TAROT2024" {
		t.Fatalf("code = %q", created.Code)
	}

	// Lookup is case-insensitive.
	found, err := repo.FindByCode(context.Background(), "  tarot2024 ")
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("found %+v, want id %s", found, created.ID)
	}

	if _, err := repo.Create(context.Background(), pc); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyExists", err)
	}
	if _, err := repo.FindByCode(context.Background(), "NOPE"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("absent err = %v, want ErrNotFound", err)
	}
}

func TestPromoRepo_IncrementUsage(t *testing.T) {
	st := memory.NewStore().WithUnique("promo_codes", "code")
	repo := NewPromoCodeRepo(st, newLogger())
	pc, _ := model.NewPromoCode("TAROTAAAA", model.SubscriptionPremium, 30, 2, "", "")
	created, err := repo.Create(context.Background(), pc)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, err := repo.IncrementUsage(context.Background(), created)
	if err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if first.UsedCount != 1 || !first.IsActive {
		t.Fatalf("after first use: %+v", first)
	}

	// Consuming the last use deactivates in the same write.
	second, err := repo.IncrementUsage(context.Background(), first)
	if err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if second.UsedCount != 2 || second.IsActive {
		t.Fatalf("after last use: %+v", second)
	}

	// A stale snapshot loses the race.
	if _, err := repo.IncrementUsage(context.Background(), created); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("stale increment err = %v, want ErrConflict", err)
	}
	// An exhausted snapshot is rejected without touching the store.
	if _, err := repo.IncrementUsage(context.Background(), second); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("exhausted increment err = %v, want ErrConflict", err)
	}
}

func TestPromoRepo_ListAllNewestFirst(t *testing.T) {
	st := memory.NewStore()
	repo := NewPromoCodeRepo(st, newLogger())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, code := range []string{"OLD", "MID", "NEW"} {
		pc, _ := model.NewPromoCode(code, model.SubscriptionPremium, 30, 1, "", "")
		pc.CreatedAt = base.AddDate(0, 0, i)
		if _, err := repo.Create(context.Background(), pc); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	all, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 || all[0].Code != "NEW" || all[2].Code != "OLD" {
		t.Fatalf("order wrong: %+v", all)
	}
}

func TestPaymentRepo_Create(t *testing.T) {
	st := memory.NewStore()
	repo := NewPaymentRepo(st)
	p, err := model.NewPayment("acct-1", 499.0, "telegram", "ext-1", model.SubscriptionPremium, 30)
	if err != nil {
		t.Fatalf("NewPayment: %v", err)
	}
	created, err := repo.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Amount != 499.0 {
		t.Fatalf("created = %+v", created)
	}
}
