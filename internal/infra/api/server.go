package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-tarot-subscription/internal/usecase"
)

// Server exposes the engine over HTTP: entitlement checks and redemption
// for the bot front end, promo management for operators.
type Server struct {
	accounts    usecase.AccountUseCase
	entitlement usecase.EntitlementUseCase
	quota       usecase.QuotaUseCase
	promo       usecase.PromoUseCase
	redemption  usecase.RedemptionUseCase
	auth        *AuthManager
	apiKey      string
	log         *zerolog.Logger
}

func NewServer(
	accounts usecase.AccountUseCase,
	entitlement usecase.EntitlementUseCase,
	quota usecase.QuotaUseCase,
	promo usecase.PromoUseCase,
	redemption usecase.RedemptionUseCase,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		accounts:    accounts,
		entitlement: entitlement,
		quota:       quota,
		promo:       promo,
		redemption:  redemption,
		auth:        auth,
		apiKey:      apiKey,
		log:         logger,
	}
}

// Router assembles the full route tree with the ambient middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/accounts/{tid}/entitlement", s.handleEntitlement)
		r.Post("/accounts/{tid}/consume", s.handleConsume)
		r.Get("/accounts/{tid}/stats", s.handleStats)
		r.Post("/redeem", s.handleRedeem)

		r.Post("/admin/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.Guard)
			r.Post("/admin/promo/batch", s.handlePromoBatch)
			r.Post("/admin/promo", s.handlePromoCreate)
			r.Get("/admin/promo", s.handlePromoList)
			r.Get("/admin/promo/stats", s.handlePromoStats)
			r.Delete("/admin/promo/{code}", s.handlePromoDeactivate)
			r.Post("/admin/accounts/{id}/deactivate", s.handleAccountDeactivate)
		})
	})

	return Chain(r, Recover(s.log), TraceID(), RequestLog(s.log), Timeout(15*time.Second))
}
