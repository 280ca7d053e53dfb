package usecase

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/infra/logging"
	"telegram-tarot-subscription/internal/infra/metrics"
)

// Compile-time check
var _ QuotaUseCase = (*quotaUC)(nil)

// QuotaUseCase is the quota ledger: it records exactly one consumption per
// successfully produced prediction, safe under concurrent requests from
// the same account (duplicate webhook delivery included).
type QuotaUseCase interface {
	// RecordConsumption increments predictions_count by one and returns the
	// updated account. After bounded retries on write conflicts it returns
	// domain.ErrConflict; the caller must NOT grant the unit of work and
	// should ask the user to retry.
	RecordConsumption(ctx context.Context, tgID int64) (*model.Account, error)
}

type quotaUC struct {
	accounts repository.AccountRepository
	attempts int
	log      *zerolog.Logger
}

func NewQuotaUseCase(accounts repository.AccountRepository, writeAttempts int, logger *zerolog.Logger) *quotaUC {
	if writeAttempts <= 0 {
		writeAttempts = 3
	}
	return &quotaUC{accounts: accounts, attempts: writeAttempts, log: logger}
}

// RecordConsumption is read-then-conditional-write: read the counter,
// attempt a write predicated on the value read, re-read and retry on
// conflict. No lock is held across store calls; the conditional write is
// the only coordination point, which keeps the ledger correct across
// process instances.
func (u *quotaUC) RecordConsumption(ctx context.Context, tgID int64) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "QuotaUC.RecordConsumption")()

	acc, err := u.accounts.FindByTelegramID(ctx, tgID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		updated, err := u.accounts.IncrementPredictions(ctx, acc)
		if err == nil {
			metrics.IncPredictionRecorded()
			return updated, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		metrics.IncQuotaConflict()
		if attempt+1 >= u.attempts {
			u.log.Warn().Int64("tg_id", tgID).Int("attempts", u.attempts).
				Msg("quota increment conflicted until retries were exhausted")
			return nil, domain.ErrConflict
		}
		sleepJitter(ctx, attempt)
		if acc, err = u.accounts.FindByTelegramID(ctx, tgID); err != nil {
			return nil, err
		}
	}
}

// sleepJitter backs off between optimistic retries: a small randomized
// delay that grows with the attempt number, aborted early if the caller's
// deadline fires.
func sleepJitter(ctx context.Context, attempt int) {
	base := time.Duration(attempt+1) * 20 * time.Millisecond
	d := base + time.Duration(rand.Int63n(int64(20*time.Millisecond)))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
