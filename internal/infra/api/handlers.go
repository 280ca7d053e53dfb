package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-tarot-subscription/internal/domain"
	"telegram-tarot-subscription/internal/domain/model"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels onto HTTP status codes. Conflicts are
// 409 so a client knows a retry is reasonable; store outages are 503.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid argument"})
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conflict, retry"})
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func telegramID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "tid"), 10, 64)
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	tid, err := telegramID(r)
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	acc, err := s.accounts.GetByTelegramID(r.Context(), tid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.entitlement.Evaluate(acc, time.Now().UTC()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tid, err := telegramID(r)
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	stats, err := s.accounts.Stats(r.Context(), tid, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleConsume is called after a prediction was produced for the user; it
// records one unit against the account's counter.
func (s *Server) handleConsume(w http.ResponseWriter, r *http.Request) {
	tid, err := telegramID(r)
	if err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	acc, err := s.quota.RecordConsumption(r.Context(), tid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"predictions_count": acc.PredictionsCount,
	})
}

type redeemRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Code       string `json:"code"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID == 0 || req.Code == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	res, err := s.redemption.Redeem(r.Context(), req.TelegramID, req.Code, time.Now().UTC())
	if err != nil {
		// The result still says Failed; surface the transport-level status
		// alongside it so the client can show "try again".
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrConflict) {
			status = http.StatusConflict
		} else if errors.Is(err, domain.ErrStoreUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if s.apiKey == "" || req.APIKey != s.apiKey {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "bad credentials"})
		return
	}
	token, err := s.auth.Mint()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type promoBatchRequest struct {
	Count       int    `json:"count"`
	Days        int    `json:"days"`
	MaxUses     int    `json:"max_uses"`
	Description string `json:"description"`
}

func (s *Server) handlePromoBatch(w http.ResponseWriter, r *http.Request) {
	var req promoBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	report, err := s.promo.IssueBatch(r.Context(), req.Count, req.Days, req.MaxUses, "admin-api", req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

type promoCreateRequest struct {
	Code        string `json:"code"`
	Type        string `json:"subscription_type"`
	Days        int    `json:"days"`
	MaxUses     int    `json:"max_uses"`
	Description string `json:"description"`
}

func (s *Server) handlePromoCreate(w http.ResponseWriter, r *http.Request) {
	var req promoCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	pc, err := s.promo.CreateCustom(r.Context(), req.Code, model.SubscriptionType(req.Type), req.Days, req.MaxUses, "admin-api", req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promoView(pc))
}

func (s *Server) handlePromoList(w http.ResponseWriter, r *http.Request) {
	all, err := s.promo.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(all))
	for _, p := range all {
		items = append(items, promoView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handlePromoStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.promo.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handlePromoDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.promo.Deactivate(r.Context(), chi.URLParam(r, "code")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountDeactivate(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func promoView(p *model.PromoCode) map[string]any {
	v := map[string]any{
		"code":              p.Code,
		"subscription_type": string(p.SubscriptionType),
		"days":              p.Days,
		"max_uses":          p.MaxUses,
		"used_count":        p.UsedCount,
		"is_active":         p.IsActive,
		"description":       p.Description,
		"created_at":        p.CreatedAt,
	}
	if p.ExpiresAt != nil {
		v["expires_at"] = *p.ExpiresAt
	}
	return v
}
