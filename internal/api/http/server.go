package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/api/dto"
	"github.com/radieske/matka-settlement/internal/authz"
	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/funding"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/settlement"
)

// ResultCache é o cache de leitura de resultados; nil desliga o cache.
type ResultCache interface {
	Get(ctx context.Context, marketID, day string, dst any) (bool, error)
	Set(ctx context.Context, marketID, day string, v any) error
}

// Server expõe o motor por HTTP. É uma casca fina: valida a entrada,
// confere a capacidade do chamador e traduz erros de domínio em status.
type Server struct {
	log     *zap.Logger
	engine  *settlement.Engine
	funding *funding.Service
	ledger  *ledger.Ledger
	authz   authz.Authorizer
	cache   ResultCache
	ws      http.HandlerFunc
}

type Options struct {
	Authorizer authz.Authorizer // padrão authz.DefaultRoles()
	Cache      ResultCache
	WebSocket  http.HandlerFunc // handler de /ws/results
}

func NewServer(log *zap.Logger, e *settlement.Engine, f *funding.Service, l *ledger.Ledger, opts Options) *Server {
	s := &Server{log: log, engine: e, funding: f, ledger: l, authz: opts.Authorizer, cache: opts.Cache, ws: opts.WebSocket}
	if s.authz == nil {
		s.authz = authz.DefaultRoles()
	}
	return s
}

// Router monta as rotas. Leituras de mercado e resultado são públicas; o
// resto exige identidade e a capacidade correspondente.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	if s.ws != nil {
		r.Get("/ws/results", s.ws)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/game-types", s.listGameTypes)
		r.Get("/markets", s.listMarkets)
		r.Get("/markets/{id}", s.getMarket)
		r.Get("/markets/{id}/status", s.sessionStatus)
		r.Get("/markets/{id}/results", s.listResults)
		r.Get("/markets/{id}/results/{day}", s.getResult)

		r.Group(func(r chi.Router) {
			r.Use(s.identity)

			r.With(s.require(authz.PlaceBid)).Post("/bids", s.placeBid)
			r.With(s.require(authz.ViewWallet)).Get("/bids", s.listBids)
			r.With(s.require(authz.ViewWallet)).Get("/wallet", s.getWallet)
			r.With(s.require(authz.ViewWallet)).Get("/wallet/entries", s.listEntries)
			r.With(s.require(authz.ViewWallet)).Post("/deposits", s.requestDeposit)
			r.With(s.require(authz.ViewWallet)).Post("/withdrawals", s.requestWithdrawal)
			r.With(s.require(authz.ViewWallet)).Post("/referrals", s.registerReferral)

			r.Route("/admin", func(r chi.Router) {
				r.With(s.require(authz.ManageMarkets)).Post("/markets", s.createMarket)
				r.With(s.require(authz.ManageMarkets)).Patch("/markets/{id}", s.updateMarket)
				r.With(s.require(authz.ReprocessResult)).Post("/markets/{id}/reprocess", s.reprocess)
				r.With(s.require(authz.RefundMarket)).Post("/markets/{id}/refund", s.refund)

				r.With(s.require(authz.DeclareResult)).Post("/results", s.declare)
				r.With(s.require(authz.RevokeResult)).Post("/results/{id}/revoke", s.revoke)

				r.With(s.require(authz.ApproveFunds)).Get("/deposits", s.listDeposits)
				r.With(s.require(authz.ApproveFunds)).Post("/deposits/{id}/approve", s.approveDeposit)
				r.With(s.require(authz.ApproveFunds)).Post("/deposits/{id}/reject", s.rejectDeposit)
				r.With(s.require(authz.ApproveFunds)).Get("/withdrawals", s.listWithdrawals)
				r.With(s.require(authz.ApproveFunds)).Post("/withdrawals/{id}/approve", s.approveWithdrawal)
				r.With(s.require(authz.ApproveFunds)).Post("/withdrawals/{id}/reject", s.rejectWithdrawal)
				r.With(s.require(authz.ApproveFunds)).Get("/wallets/{owner}/audit", s.audit)
			})
		})
	})
	return r
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf traduz erros de domínio em status HTTP.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMarketClosed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrAlreadyDeclared),
		errors.Is(err, domain.ErrNotDeclared),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := dto.ErrorResponse{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		resp.Error = "internal error"
	}
	writeJSON(w, status, resp)
}

// decode lê o corpo JSON e aplica as tags de validação.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("body", "bad json: %v", err)
	}
	return dto.Validate(dst)
}

func queryLimit(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		return n
	}
	return def
}
