package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/infra/logging"
)

// Compile-time check
var _ AccountUseCase = (*accountUC)(nil)

// AccountUseCase exposes account-level operations used by the bot front
// end and admin tooling.
type AccountUseCase interface {
	// GetOrCreate lazily provisions an account on first contact with free
	// defaults.
	GetOrCreate(ctx context.Context, tgID int64, username, firstName, lastName, lang string) (*model.Account, error)
	GetByTelegramID(ctx context.Context, tgID int64) (*model.Account, error)
	// Stats is the user-facing summary (counter, remaining quota, expiry).
	Stats(ctx context.Context, tgID int64, now time.Time) (*model.AccountStats, error)
	// GrantSubscription activates a subscription starting now for the given
	// number of days. Used by the redemption transaction and payment flow.
	GrantSubscription(ctx context.Context, accountID string, subType model.SubscriptionType, days int, now time.Time) (*model.Account, error)
	// RestoreSubscription reverts the subscription fields to a snapshot;
	// the compensating half of a failed two-step operation.
	RestoreSubscription(ctx context.Context, accountID string, snapshot model.SubscriptionState) error
	// RecordPayment persists a completed payment and accumulates the amount
	// into total_spent.
	RecordPayment(ctx context.Context, tgID int64, amount float64, system, externalID string, subType model.SubscriptionType, days int) error
	// Deactivate is the operator kill switch, independent of dates.
	Deactivate(ctx context.Context, accountID string) error
}

type accountUC struct {
	accounts    repository.AccountRepository
	payments    repository.PaymentRepository
	entitlement EntitlementUseCase
	attempts    int
	log         *zerolog.Logger
}

func NewAccountUseCase(accounts repository.AccountRepository, payments repository.PaymentRepository, entitlement EntitlementUseCase, writeAttempts int, logger *zerolog.Logger) *accountUC {
	if writeAttempts <= 0 {
		writeAttempts = 3
	}
	return &accountUC{
		accounts:    accounts,
		payments:    payments,
		entitlement: entitlement,
		attempts:    writeAttempts,
		log:         logger,
	}
}

func (u *accountUC) GetOrCreate(ctx context.Context, tgID int64, username, firstName, lastName, lang string) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.GetOrCreate")()

	acc, err := u.accounts.FindByTelegramID(ctx, tgID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	nu, err := model.NewAccount(tgID, username, firstName, lastName, lang)
	if err != nil {
		return nil, err
	}
	created, err := u.accounts.Create(ctx, nu)
	if err == nil {
		u.log.Info().Int64("tg_id", tgID).Str("account_id", created.ID).Msg("account created")
		return created, nil
	}
	// Two first-contact messages can race the insert; the loser re-reads.
	if errors.Is(err, domain.ErrAlreadyExists) {
		return u.accounts.FindByTelegramID(ctx, tgID)
	}
	return nil, err
}

func (u *accountUC) GetByTelegramID(ctx context.Context, tgID int64) (*model.Account, error) {
	return u.accounts.FindByTelegramID(ctx, tgID)
}

func (u *accountUC) Stats(ctx context.Context, tgID int64, now time.Time) (*model.AccountStats, error) {
	defer logging.TraceDuration(u.log, "AccountUC.Stats")()

	acc, err := u.accounts.FindByTelegramID(ctx, tgID)
	if err != nil {
		return nil, err
	}
	st := u.entitlement.Evaluate(acc, now)
	stats := &model.AccountStats{
		PredictionsCount:      acc.PredictionsCount,
		RemainingPredictions:  st.RemainingPredictions,
		Unlimited:             st.Unlimited,
		HasActiveSubscription: st.HasActiveSubscription,
		SubscriptionType:      acc.SubscriptionType,
		TotalSpent:            acc.TotalSpent,
	}
	if acc.SubscriptionEnd != nil {
		stats.SubscriptionEnd = acc.SubscriptionEnd.Format("02.01.2006")
	}
	return stats, nil
}

func (u *accountUC) GrantSubscription(ctx context.Context, accountID string, subType model.SubscriptionType, days int, now time.Time) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "AccountUC.GrantSubscription")()

	if days <= 0 || !subType.Paid() {
		return nil, domain.ErrInvalidArgument
	}
	updated, err := u.accounts.UpdateSubscription(ctx, accountID, model.GrantState(subType, days, now))
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("account_id", accountID).Str("type", string(subType)).
		Int("days", days).Time("until", *updated.SubscriptionEnd).Msg("subscription granted")
	return updated, nil
}

func (u *accountUC) RestoreSubscription(ctx context.Context, accountID string, snapshot model.SubscriptionState) error {
	_, err := u.accounts.UpdateSubscription(ctx, accountID, snapshot)
	return err
}

func (u *accountUC) RecordPayment(ctx context.Context, tgID int64, amount float64, system, externalID string, subType model.SubscriptionType, days int) error {
	defer logging.TraceDuration(u.log, "AccountUC.RecordPayment")()

	acc, err := u.accounts.FindByTelegramID(ctx, tgID)
	if err != nil {
		return err
	}
	p, err := model.NewPayment(acc.ID, amount, system, externalID, subType, days)
	if err != nil {
		return err
	}
	if _, err := u.payments.Create(ctx, p); err != nil {
		return err
	}

	for attempt := 0; attempt < u.attempts; attempt++ {
		if _, err = u.accounts.AddSpent(ctx, acc, amount); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return err
		}
		if acc, err = u.accounts.FindByID(ctx, acc.ID); err != nil {
			return err
		}
	}
	return domain.ErrConflict
}

func (u *accountUC) Deactivate(ctx context.Context, accountID string) error {
	acc, err := u.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	state := acc.SubscriptionSnapshot()
	state.IsActive = false
	_, err = u.accounts.UpdateSubscription(ctx, accountID, state)
	if err == nil {
		u.log.Warn().Str("account_id", accountID).Msg("account deactivated")
	}
	return err
}
