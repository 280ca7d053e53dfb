package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
)

func TestIssueBatch(t *testing.T) {
	repo := newMemPromoRepo()
	uc := NewPromoUseCase(repo, "TAROT", 8, newTestLogger())

	report, err := uc.IssueBatch(context.Background(), 5, 30, 1, "admin", "")
	if err != nil {
		t.Fatalf("IssueBatch: %v", err)
	}
	if report.Requested != 5 || len(report.Issued) != 5 {
		t.Fatalf("report = %+v", report)
	}

	seen := map[string]bool{}
	for _, code := range report.Issued {
		if seen[code] {
			t.Fatalf("duplicate code issued: %s", code)
		}
		seen[code] = true

		if !strings.HasPrefix(code, "TAROT") {
			t.Errorf("code %q lacks prefix", code)
		}
		random := strings.TrimPrefix(code, "TAROT")
		if len(random) != 8 {
			t.Errorf("code %q random part length = %d, want 8", code, len(random))
		}
		for _, r := range random {
			if !strings.ContainsRune(codeChars, r) {
				t.Errorf("code %q contains %q outside the alphabet", code, r)
			}
		}

		pc, err := uc.Lookup(context.Background(), code)
		if err != nil {
			t.Fatalf("Lookup(%s): %v", code, err)
		}
		if pc.Days != 30 || pc.MaxUses != 1 || !pc.IsActive {
			t.Errorf("stored code %+v", pc)
		}
	}
}

func TestIssueBatch_InvalidArgs(t *testing.T) {
	uc := NewPromoUseCase(newMemPromoRepo(), "", 0, newTestLogger())
	for _, bad := range [][3]int{{0, 30, 1}, {5, 0, 1}, {5, 30, 0}} {
		if _, err := uc.IssueBatch(context.Background(), bad[0], bad[1], bad[2], "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("IssueBatch%v err = %v, want ErrInvalidArgument", bad, err)
		}
	}
}

func TestIssueBatch_PartialFailure(t *testing.T) {
	repo := newMemPromoRepo()
	uc := NewPromoUseCase(repo, "TAROT", 8, newTestLogger())

	if _, err := uc.IssueBatch(context.Background(), 3, 30, 1, "", ""); err != nil {
		t.Fatalf("warmup batch: %v", err)
	}
	repo.createErr = domain.ErrStoreUnavailable

	report, err := uc.IssueBatch(context.Background(), 4, 30, 1, "", "")
	if err != nil {
		t.Fatalf("IssueBatch: %v", err)
	}
	// The report stays truthful: nothing was created this round.
	if report.Requested != 4 || len(report.Issued) != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestCreateCustom(t *testing.T) {
	repo := newMemPromoRepo()
	uc := NewPromoUseCase(repo, "TAROT", 8, newTestLogger())

	pc, err := uc.CreateCustom(context.Background(), "summer2024", model.SubscriptionTrial, 7, 100, "admin", "summer push")
	if err != nil {
		t.Fatalf("CreateCustom: %v", err)
	}
	if pc.Code != "SUMMER2024" || pc.SubscriptionType != model.SubscriptionTrial {
		t.Fatalf("created %+v", pc)
	}

	if _, err := uc.CreateCustom(context.Background(), "SUMMER2024", model.SubscriptionPremium, 30, 1, "", ""); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("duplicate custom err = %v, want ErrAlreadyExists", err)
	}
}

func TestDeactivate(t *testing.T) {
	repo := newMemPromoRepo()
	uc := NewPromoUseCase(repo, "TAROT", 8, newTestLogger())
	if _, err := uc.CreateCustom(context.Background(), "KILLME", model.SubscriptionPremium, 30, 10, "", ""); err != nil {
		t.Fatalf("CreateCustom: %v", err)
	}

	if err := uc.Deactivate(context.Background(), "killme"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	pc, err := uc.Lookup(context.Background(), "KILLME")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if pc.IsActive {
		t.Fatal("code still active after Deactivate")
	}

	if err := uc.Deactivate(context.Background(), "NOPE"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("absent err = %v, want ErrNotFound", err)
	}
}

func TestStats(t *testing.T) {
	repo := newMemPromoRepo()
	uc := NewPromoUseCase(repo, "TAROT", 8, newTestLogger())

	// two active unused, one used once (multi-use), one exhausted single-use
	if _, err := uc.IssueBatch(context.Background(), 2, 30, 1, "", ""); err != nil {
		t.Fatalf("IssueBatch: %v", err)
	}
	multi, err := uc.CreateCustom(context.Background(), "MULTI", model.SubscriptionPremium, 30, 5, "", "")
	if err != nil {
		t.Fatalf("CreateCustom: %v", err)
	}
	single, err := uc.CreateCustom(context.Background(), "SINGLE", model.SubscriptionPremium, 30, 1, "", "")
	if err != nil {
		t.Fatalf("CreateCustom: %v", err)
	}
	if _, err := repo.IncrementUsage(context.Background(), multi); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}
	if _, err := repo.IncrementUsage(context.Background(), single); err != nil {
		t.Fatalf("IncrementUsage: %v", err)
	}

	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := model.PromoStats{TotalCodes: 4, ActiveCodes: 3, UsedCodes: 2, TotalUses: 2}
	if *stats != want {
		t.Fatalf("stats = %+v, want %+v", *stats, want)
	}
}

func TestExportActiveCodes(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	codes := []*model.PromoCode{
		{Code: "GOOD", IsActive: true, MaxUses: 1},
		{Code: "PULLED", IsActive: false, MaxUses: 1},
		{Code: "SPENT", IsActive: true, MaxUses: 1, UsedCount: 1},
		{Code: "STALE", IsActive: true, MaxUses: 1, ExpiresAt: &past},
	}

	var buf bytes.Buffer
	n, err := ExportActiveCodes(codes, &buf, now)
	if err != nil {
		t.Fatalf("ExportActiveCodes: %v", err)
	}
	if n != 1 || buf.String() != "GOOD\n" {
		t.Fatalf("exported %d: %q", n, buf.String())
	}
}
