package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
)

func newAccountUC(repo *memAccountRepo, payments *memPaymentRepo) AccountUseCase {
	return NewAccountUseCase(repo, payments, NewEntitlementUseCase(2), 3, newTestLogger())
}

func TestGetOrCreate(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())

	t.Run("first contact provisions", func(t *testing.T) {
		acc, err := uc.GetOrCreate(context.Background(), 42, "alice", "Alice", "", "en")
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if acc.SubscriptionType != model.SubscriptionFree || acc.PredictionsCount != 0 {
			t.Fatalf("fresh account %+v", acc)
		}
	})

	t.Run("second contact returns the same account", func(t *testing.T) {
		again, err := uc.GetOrCreate(context.Background(), 42, "alice", "Alice", "", "en")
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		first, _ := repo.FindByTelegramID(context.Background(), 42)
		if again.ID != first.ID {
			t.Fatalf("got id %s, want %s", again.ID, first.ID)
		}
	})

	t.Run("bad telegram id", func(t *testing.T) {
		if _, err := uc.GetOrCreate(context.Background(), -1, "", "", "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("err = %v, want ErrInvalidArgument", err)
		}
	})
}

func TestStats_FormatsExpiry(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())
	acc := seedAccount(t, repo, 42)

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if _, err := uc.GrantSubscription(context.Background(), acc.ID, model.SubscriptionPremium, 30, now); err != nil {
		t.Fatalf("GrantSubscription: %v", err)
	}

	stats, err := uc.Stats(context.Background(), 42, now)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !stats.Unlimited || !stats.HasActiveSubscription {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.SubscriptionEnd != "14.04.2024" {
		t.Fatalf("subscription_end = %q, want 14.04.2024", stats.SubscriptionEnd)
	}
}

func TestGrantSubscription_Validation(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())
	acc := seedAccount(t, repo, 42)
	now := time.Now().UTC()

	if _, err := uc.GrantSubscription(context.Background(), acc.ID, model.SubscriptionPremium, 0, now); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("zero days err = %v", err)
	}
	if _, err := uc.GrantSubscription(context.Background(), acc.ID, model.SubscriptionFree, 30, now); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("free grant err = %v", err)
	}
}

func TestRestoreSubscription_RoundTrip(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())
	acc := seedAccount(t, repo, 42)
	snapshot := acc.SubscriptionSnapshot()
	now := time.Now().UTC()

	if _, err := uc.GrantSubscription(context.Background(), acc.ID, model.SubscriptionPremium, 30, now); err != nil {
		t.Fatalf("GrantSubscription: %v", err)
	}
	if err := uc.RestoreSubscription(context.Background(), acc.ID, snapshot); err != nil {
		t.Fatalf("RestoreSubscription: %v", err)
	}
	reverted, _ := repo.FindByTelegramID(context.Background(), 42)
	if reverted.SubscriptionType != model.SubscriptionFree || reverted.SubscriptionEnd != nil {
		t.Fatalf("restore incomplete: %+v", reverted)
	}
}

func TestRecordPayment(t *testing.T) {
	repo := newMemAccountRepo()
	payments := newMemPaymentRepo()
	uc := newAccountUC(repo, payments)
	seedAccount(t, repo, 42)

	if err := uc.RecordPayment(context.Background(), 42, 499, "telegram", "ext-1", model.SubscriptionPremium, 30); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if len(payments.payments) != 1 {
		t.Fatalf("payments stored = %d", len(payments.payments))
	}
	acc, _ := repo.FindByTelegramID(context.Background(), 42)
	if acc.TotalSpent != 499 {
		t.Fatalf("total_spent = %v, want 499", acc.TotalSpent)
	}
}

func TestRecordPayment_RetriesSpentConflicts(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())
	seedAccount(t, repo, 42)
	repo.conflictsLeft = 2

	if err := uc.RecordPayment(context.Background(), 42, 100, "telegram", "ext-2", model.SubscriptionPremium, 30); err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	acc, _ := repo.FindByTelegramID(context.Background(), 42)
	if acc.TotalSpent != 100 {
		t.Fatalf("total_spent = %v, want 100", acc.TotalSpent)
	}
}

func TestDeactivateAccount(t *testing.T) {
	repo := newMemAccountRepo()
	uc := newAccountUC(repo, newMemPaymentRepo())
	acc := seedAccount(t, repo, 42)
	now := time.Now().UTC()

	if _, err := uc.GrantSubscription(context.Background(), acc.ID, model.SubscriptionPremium, 30, now); err != nil {
		t.Fatalf("GrantSubscription: %v", err)
	}
	if err := uc.Deactivate(context.Background(), acc.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	// The dates survive, but the kill switch wins.
	got, _ := repo.FindByTelegramID(context.Background(), 42)
	if got.IsActive {
		t.Fatal("account still active")
	}
	if got.SubscriptionEnd == nil {
		t.Fatal("deactivation erased the subscription dates")
	}
	st := NewEntitlementUseCase(2).Evaluate(got, now)
	if st.Unlimited {
		t.Fatal("deactivated account still entitled")
	}
}
