package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// memAccountRepo is an in-memory AccountRepository with the same
// compare-and-swap semantics the real store exposes. Error hooks let tests
// simulate infrastructure failures.
type memAccountRepo struct {
	mu      sync.Mutex
	byTgID  map[int64]*model.Account
	nextID  int
	findErr error
	// conflictsLeft forces the next N conditional writes to conflict even
	// when the predicate would match.
	conflictsLeft int
	updateErr     error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{byTgID: make(map[int64]*model.Account)}
}

func (m *memAccountRepo) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byTgID[acc.TelegramID]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.nextID++
	cp := *acc
	cp.ID = strconv.Itoa(m.nextID)
	m.byTgID[acc.TelegramID] = &cp
	out := cp
	return &out, nil
}

func (m *memAccountRepo) FindByTelegramID(ctx context.Context, tgID int64) (*model.Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.byTgID[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *memAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.byTgID {
		if acc.ID == id {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) UpdateSubscription(ctx context.Context, id string, sub model.SubscriptionState) (*model.Account, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.byTgID {
		if acc.ID != id {
			continue
		}
		acc.SubscriptionType = sub.Type
		acc.SubscriptionStart = sub.Start
		acc.SubscriptionEnd = sub.End
		acc.IsActive = sub.IsActive
		cp := *acc
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAccountRepo) IncrementPredictions(ctx context.Context, snapshot *model.Account) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return nil, domain.ErrConflict
	}
	acc, ok := m.byTgID[snapshot.TelegramID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if acc.PredictionsCount != snapshot.PredictionsCount {
		return nil, domain.ErrConflict
	}
	acc.PredictionsCount++
	cp := *acc
	return &cp, nil
}

func (m *memAccountRepo) AddSpent(ctx context.Context, snapshot *model.Account, amount float64) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return nil, domain.ErrConflict
	}
	acc, ok := m.byTgID[snapshot.TelegramID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if acc.TotalSpent != snapshot.TotalSpent {
		return nil, domain.ErrConflict
	}
	acc.TotalSpent += amount
	cp := *acc
	return &cp, nil
}

// memPromoRepo mirrors the promo table with conditional usage increments.
type memPromoRepo struct {
	mu      sync.Mutex
	byCode  map[string]*model.PromoCode
	nextID  int
	created []string

	createErr error
	findErr   error
	incErr    error
	// conflictsLeft forces spurious conflicts on IncrementUsage.
	conflictsLeft int
	// incHook runs once at the top of IncrementUsage, under the lock, to
	// let a test interleave a competing writer deterministically.
	incHook func(m *memPromoRepo)
}

func newMemPromoRepo() *memPromoRepo {
	return &memPromoRepo{byCode: make(map[string]*model.PromoCode)}
}

func (m *memPromoRepo) Create(ctx context.Context, code *model.PromoCode) (*model.PromoCode, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(code.Code)
	if _, ok := m.byCode[key]; ok {
		return nil, domain.ErrAlreadyExists
	}
	m.nextID++
	cp := *code
	cp.ID = strconv.Itoa(m.nextID)
	cp.Code = key
	m.byCode[key] = &cp
	m.created = append(m.created, key)
	out := cp
	return &out, nil
}

func (m *memPromoRepo) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pc, ok := m.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *pc
	return &cp, nil
}

func (m *memPromoRepo) ListAll(ctx context.Context) ([]*model.PromoCode, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.PromoCode, 0, len(m.created))
	for i := len(m.created) - 1; i >= 0; i-- {
		cp := *m.byCode[m.created[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPromoRepo) IncrementUsage(ctx context.Context, snapshot *model.PromoCode) (*model.PromoCode, error) {
	if m.incErr != nil {
		return nil, m.incErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.incHook != nil {
		hook := m.incHook
		m.incHook = nil
		hook(m)
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return nil, domain.ErrConflict
	}
	pc, ok := m.byCode[snapshot.Code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if pc.UsedCount != snapshot.UsedCount || snapshot.Exhausted() {
		return nil, domain.ErrConflict
	}
	pc.UsedCount++
	if pc.UsedCount >= pc.MaxUses {
		pc.IsActive = false
	}
	cp := *pc
	return &cp, nil
}

func (m *memPromoRepo) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pc := range m.byCode {
		if pc.ID == id {
			pc.IsActive = false
			return nil
		}
	}
	return domain.ErrNotFound
}

type memPaymentRepo struct {
	mu        sync.Mutex
	payments  []*model.Payment
	createErr error
}

func newMemPaymentRepo() *memPaymentRepo { return &memPaymentRepo{} }

func (m *memPaymentRepo) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.ID = strconv.Itoa(len(m.payments) + 1)
	m.payments = append(m.payments, &cp)
	out := cp
	return &out, nil
}
