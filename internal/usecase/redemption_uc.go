package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/infra/logging"
	"telegram-tarot-subscription/internal/infra/metrics"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// RedemptionUseCase is the transaction that turns a promo code into a
// subscription. It is the only writer that touches both the promo table
// and the account's subscription fields in one flow.
type RedemptionUseCase interface {
	// Redeem validates the code, grants the subscription and records the
	// use, in that order. Validation always reads the authoritative store.
	//
	// Status Rejected means the code itself said no (unknown, deactivated,
	// exhausted, expired); the result carries the reason and err is nil.
	// Status Failed means infrastructure got in the way; any partial grant
	// has been rolled back and err is non-nil, so the user may simply retry.
	Redeem(ctx context.Context, tgID int64, code string, now time.Time) (*model.RedemptionResult, error)
}

type redemptionUC struct {
	codes    repository.PromoCodeRepository
	accounts AccountUseCase
	attempts int
	log      *zerolog.Logger
}

func NewRedemptionUseCase(codes repository.PromoCodeRepository, accounts AccountUseCase, writeAttempts int, logger *zerolog.Logger) *redemptionUC {
	if writeAttempts <= 0 {
		writeAttempts = 3
	}
	return &redemptionUC{codes: codes, accounts: accounts, attempts: writeAttempts, log: logger}
}

// validate runs the checks in a fixed order so the user always gets the
// most actionable answer: an unknown code is "not found" even if it would
// also be expired, a deactivated code is "inactive" before anything else.
func validate(pc *model.PromoCode, now time.Time) *model.RedemptionResult {
	switch {
	case !pc.IsActive:
		return model.RedemptionRejectedWith(model.RejectInactive)
	case pc.Exhausted():
		return model.RedemptionRejectedWith(model.RejectLimitReached)
	case pc.ExpiredAt(now):
		return model.RedemptionRejectedWith(model.RejectExpired)
	}
	return nil
}

func (u *redemptionUC) Redeem(ctx context.Context, tgID int64, code string, now time.Time) (*model.RedemptionResult, error) {
	defer logging.TraceDuration(u.log, "RedemptionUC.Redeem")()

	attemptID := ulid.Make().String()
	log := u.log.With().Str("attempt_id", attemptID).Int64("tg_id", tgID).Logger()

	pc, err := u.codes.FindByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncRedemption(string(model.RedemptionRejected), string(model.RejectNotFound))
		return model.RedemptionRejectedWith(model.RejectNotFound), nil
	}
	if err != nil {
		return &model.RedemptionResult{Status: model.RedemptionFailed}, err
	}
	if rej := validate(pc, now); rej != nil {
		metrics.IncRedemption(string(rej.Status), string(rej.Reason))
		log.Info().Str("code", pc.Code).Str("reason", string(rej.Reason)).Msg("redemption rejected")
		return rej, nil
	}

	acc, err := u.accounts.GetOrCreate(ctx, tgID, "", "", "", "")
	if err != nil {
		return &model.RedemptionResult{Status: model.RedemptionFailed}, err
	}

	// Snapshot before the grant so a failed recording step can put the
	// subscription back exactly as it was.
	snapshot := acc.SubscriptionSnapshot()

	granted, err := u.accounts.GrantSubscription(ctx, acc.ID, pc.SubscriptionType, pc.Days, now)
	if err != nil {
		return &model.RedemptionResult{Status: model.RedemptionFailed}, err
	}

	if rej, err := u.recordUse(ctx, log, pc, now); rej != nil || err != nil {
		u.rollback(ctx, log, acc.ID, snapshot)
		if rej != nil {
			metrics.IncRedemption(string(rej.Status), string(rej.Reason))
			return rej, nil
		}
		return &model.RedemptionResult{Status: model.RedemptionFailed}, err
	}

	metrics.IncRedemption(string(model.RedemptionSuccess), "")
	log.Info().Str("code", pc.Code).Str("type", string(pc.SubscriptionType)).
		Int("days", pc.Days).Msg("promo code redeemed")
	return &model.RedemptionResult{
		Status:           model.RedemptionSuccess,
		SubscriptionType: pc.SubscriptionType,
		SubscriptionEnd:  granted.SubscriptionEnd,
		Days:             pc.Days,
	}, nil
}

// recordUse claims one use of the code with a conditional write and bounded
// retries. A non-nil rejection means the code ran out (or was pulled) while
// this redemption was in flight; the caller must undo the grant.
func (u *redemptionUC) recordUse(ctx context.Context, log zerolog.Logger, pc *model.PromoCode, now time.Time) (*model.RedemptionResult, error) {
	for attempt := 0; ; attempt++ {
		_, err := u.codes.IncrementUsage(ctx, pc)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		metrics.IncRedemptionConflict()

		// Another redemption moved used_count; re-read and decide whether
		// the code still has room for this one.
		fresh, rerr := u.codes.FindByCode(ctx, pc.Code)
		if rerr != nil {
			return nil, rerr
		}
		if !fresh.IsActive || fresh.Exhausted() || fresh.ExpiredAt(now) {
			// Lost the race for the last use. The reason is limit_reached
			// regardless of which flag flipped: from this user's seat the
			// code was valid when they asked and ran out before their turn.
			return model.RedemptionRejectedWith(model.RejectLimitReached), nil
		}
		if attempt+1 >= u.attempts {
			log.Warn().Str("code", pc.Code).Int("attempts", u.attempts).
				Msg("usage increment conflicted until retries were exhausted")
			return nil, domain.ErrConflict
		}
		sleepJitter(ctx, attempt)
		pc = fresh
	}
}

// rollback restores the pre-grant subscription state. Best effort: a
// rollback that itself fails is logged loudly and left for the operator,
// since retrying here would just repeat the same store failure.
func (u *redemptionUC) rollback(ctx context.Context, log zerolog.Logger, accountID string, snapshot model.SubscriptionState) {
	if err := u.accounts.RestoreSubscription(ctx, accountID, snapshot); err != nil {
		metrics.IncRedemptionRollback("failed")
		log.Error().Err(err).Str("account_id", accountID).
			Msg("rollback of granted subscription failed; account left inconsistent")
		return
	}
	metrics.IncRedemptionRollback("ok")
	log.Info().Str("account_id", accountID).Msg("granted subscription rolled back")
}
