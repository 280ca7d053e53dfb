package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
	"telegram-tarot-subscription/internal/domain/ports/repository"
	"telegram-tarot-subscription/internal/infra/logging"
	"telegram-tarot-subscription/internal/infra/metrics"
)

// codeChars avoids ambiguous characters like O/0 and I/1/l.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// How many times to redraw when a generated token collides with an
// existing code before giving up on that slot.
const maxGenerateRetries = 5

// Compile-time check
var _ PromoUseCase = (*promoUC)(nil)

// PromoUseCase manages the promo code registry: issuing, lookup, listing
// and aggregate statistics. Redemption itself lives in RedemptionUseCase.
type PromoUseCase interface {
	// IssueBatch creates count independent codes. Partial failure is
	// normal: the report lists exactly the codes that were created.
	IssueBatch(ctx context.Context, count, days, maxUses int, issuerID, descriptionTemplate string) (*model.BatchReport, error)
	// CreateCustom registers a hand-picked token such as SUMMER2024.
	CreateCustom(ctx context.Context, code string, subType model.SubscriptionType, days, maxUses int, issuerID, description string) (*model.PromoCode, error)
	// Lookup is case-insensitive.
	Lookup(ctx context.Context, code string) (*model.PromoCode, error)
	ListAll(ctx context.Context) ([]*model.PromoCode, error)
	Deactivate(ctx context.Context, code string) error
	Stats(ctx context.Context) (*model.PromoStats, error)
}

type promoUC struct {
	codes      repository.PromoCodeRepository
	prefix     string
	codeLength int
	log        *zerolog.Logger
}

func NewPromoUseCase(codes repository.PromoCodeRepository, prefix string, codeLength int, logger *zerolog.Logger) *promoUC {
	if prefix == "" {
		prefix = "TAROT"
	}
	if codeLength <= 0 {
		codeLength = 8
	}
	return &promoUC{codes: codes, prefix: strings.ToUpper(prefix), codeLength: codeLength, log: logger}
}

// generateCode draws a random token from the unambiguous alphabet with the
// registry's fixed prefix.
func (u *promoUC) generateCode() (string, error) {
	buf := make([]byte, u.codeLength)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	for i := range buf {
		buf[i] = codeChars[int(buf[i])%len(codeChars)]
	}
	return u.prefix + string(buf), nil
}

func (u *promoUC) IssueBatch(ctx context.Context, count, days, maxUses int, issuerID, descriptionTemplate string) (*model.BatchReport, error) {
	defer logging.TraceDuration(u.log, "PromoUC.IssueBatch")()

	if count <= 0 || days <= 0 || maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if descriptionTemplate == "" {
		descriptionTemplate = "Auto-generated code #%d"
	}

	report := &model.BatchReport{Requested: count, Issued: make([]string, 0, count)}
	for i := 0; i < count; i++ {
		created, err := u.issueOne(ctx, days, maxUses, issuerID, fmt.Sprintf(descriptionTemplate, i+1))
		if err != nil {
			// Partial failure stays partial: the admin is told exactly how
			// many codes exist, never an all-or-nothing answer.
			u.log.Error().Err(err).Int("slot", i+1).Msg("failed to issue promo code")
			continue
		}
		report.Issued = append(report.Issued, created.Code)
	}
	metrics.AddPromoCodesIssued(len(report.Issued))
	u.log.Info().Int("requested", count).Int("issued", len(report.Issued)).Msg("promo batch issued")
	return report, nil
}

func (u *promoUC) issueOne(ctx context.Context, days, maxUses int, issuerID, description string) (*model.PromoCode, error) {
	var lastErr error
	for attempt := 0; attempt < maxGenerateRetries; attempt++ {
		token, err := u.generateCode()
		if err != nil {
			return nil, err
		}
		pc, err := model.NewPromoCode(token, model.SubscriptionPremium, days, maxUses, issuerID, description)
		if err != nil {
			return nil, err
		}
		created, err := u.codes.Create(ctx, pc)
		if err == nil {
			return created, nil
		}
		// A collision trips the store's uniqueness constraint; draw again.
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("code generation kept colliding: %w", lastErr)
}

func (u *promoUC) CreateCustom(ctx context.Context, code string, subType model.SubscriptionType, days, maxUses int, issuerID, description string) (*model.PromoCode, error) {
	defer logging.TraceDuration(u.log, "PromoUC.CreateCustom")()

	pc, err := model.NewPromoCode(code, subType, days, maxUses, issuerID, description)
	if err != nil {
		return nil, err
	}
	created, err := u.codes.Create(ctx, pc)
	if err != nil {
		return nil, err
	}
	metrics.AddPromoCodesIssued(1)
	return created, nil
}

func (u *promoUC) Lookup(ctx context.Context, code string) (*model.PromoCode, error) {
	return u.codes.FindByCode(ctx, code)
}

func (u *promoUC) ListAll(ctx context.Context) ([]*model.PromoCode, error) {
	return u.codes.ListAll(ctx)
}

func (u *promoUC) Deactivate(ctx context.Context, code string) error {
	pc, err := u.codes.FindByCode(ctx, code)
	if err != nil {
		return err
	}
	return u.codes.Deactivate(ctx, pc.ID)
}

// Stats is a pure aggregation over ListAll.
func (u *promoUC) Stats(ctx context.Context) (*model.PromoStats, error) {
	all, err := u.codes.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := &model.PromoStats{TotalCodes: len(all)}
	for _, p := range all {
		if p.IsActive {
			stats.ActiveCodes++
		}
		if p.UsedCount > 0 {
			stats.UsedCodes++
		}
		stats.TotalUses += p.UsedCount
	}
	return stats, nil
}

// ExportActiveCodes writes one active code per line, the shape the promo
// hand-out spreadsheet expects.
func ExportActiveCodes(codes []*model.PromoCode, w io.Writer, now time.Time) (int, error) {
	n := 0
	for _, p := range codes {
		if !p.IsActive || p.Exhausted() || p.ExpiredAt(now) {
			continue
		}
		if _, err := fmt.Fprintln(w, p.Code); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
