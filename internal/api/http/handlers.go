package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/api/dto"
	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/settlement"
	"github.com/radieske/matka-settlement/internal/store"
)

// ─── Mercados e resultados (público) ───────────────────────────────────────

func (s *Server) listGameTypes(w http.ResponseWriter, r *http.Request) {
	gts, err := s.engine.GameTypes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gts)
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	ms, err := s.engine.ListMarkets(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.GetMarket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.SessionStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listResults(w http.ResponseWriter, r *http.Request) {
	rs, err := s.engine.Results(r.Context(), chi.URLParam(r, "id"), queryLimit(r, 30))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

// getResult lê do cache quando possível; declarações invalidam a entrada.
func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	id, day := chi.URLParam(r, "id"), chi.URLParam(r, "day")
	if s.cache != nil {
		var cached domain.Result
		if ok, err := s.cache.Get(r.Context(), id, day, &cached); ok && err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}
	res, err := s.engine.Result(r.Context(), id, day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Set(r.Context(), id, day, res); err != nil {
			s.log.Warn("result cache set failed", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, res)
}

// ─── Jogador ────────────────────────────────────────────────────────────────

func (s *Server) placeBid(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBidRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	items := make([]settlement.BidItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = settlement.BidItem{Selection: it.Selection, Stake: it.Stake}
	}
	out, err := s.engine.PlaceBid(r.Context(), settlement.BidRequest{
		OwnerID:    p.ID,
		MarketID:   req.MarketID,
		GameTypeID: req.GameTypeID,
		Session:    domain.Session(req.Session),
		Items:      items,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) listBids(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	q := r.URL.Query()
	bids, err := s.engine.Bids(r.Context(), store.BidFilter{
		OwnerID:  p.ID,
		MarketID: q.Get("market_id"),
		Day:      q.Get("day"),
		Status:   domain.BidStatus(q.Get("status")),
		Limit:    queryLimit(r, 100),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	wl, err := s.ledger.Balance(r.Context(), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{OwnerID: wl.OwnerID, Balance: wl.Balance, Version: wl.Version})
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	es, err := s.ledger.History(r.Context(), p.ID, queryLimit(r, 50))
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, []domain.LedgerEntry{})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, es)
}

func decodeAmount(r *http.Request) (dto.AmountRequest, decimal.Decimal, error) {
	var req dto.AmountRequest
	if err := decode(r, &req); err != nil {
		return req, decimal.Zero, err
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return req, decimal.Zero, domain.Invalid("amount", "%v", err)
	}
	return req, amount, nil
}

func (s *Server) requestDeposit(w http.ResponseWriter, r *http.Request) {
	req, amount, err := decodeAmount(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	d, err := s.funding.RequestDeposit(r.Context(), p.ID, amount, req.Reference)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	_, amount, err := decodeAmount(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	e, err := s.funding.RequestWithdrawal(r.Context(), p.ID, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) registerReferral(w http.ResponseWriter, r *http.Request) {
	var req dto.ReferralRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, _ := principalFrom(r.Context())
	if err := s.funding.RegisterReferral(r.Context(), p.ID, req.ReferrerID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"referred_id": p.ID, "referrer_id": req.ReferrerID})
}

// ─── Admin ──────────────────────────────────────────────────────────────────

func marketInput(req dto.MarketRequest) settlement.MarketInput {
	return settlement.MarketInput{
		Name:           req.Name,
		OpenTime:       req.OpenTime,
		CloseTime:      req.CloseTime,
		Enabled:        req.Enabled,
		BettingEnabled: req.BettingEnabled,
	}
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.MarketRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.engine.CreateMarket(r.Context(), marketInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) updateMarket(w http.ResponseWriter, r *http.Request) {
	var req dto.MarketRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.engine.UpdateMarket(r.Context(), chi.URLParam(r, "id"), marketInput(req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) declare(w http.ResponseWriter, r *http.Request) {
	var req dto.DeclareRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.DeclareResult(r.Context(), settlement.Declaration{
		MarketID: req.MarketID,
		Session:  domain.Session(req.Session),
		Pattern:  req.Pattern,
		Digit:    req.Digit,
		Day:      req.Day,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request) {
	out, err := s.engine.RevokeResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) reprocess(w http.ResponseWriter, r *http.Request) {
	var req dto.DayRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.ReprocessResults(r.Context(), chi.URLParam(r, "id"), req.Day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req dto.DayRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.engine.RefundMarket(r.Context(), chi.URLParam(r, "id"), req.Day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listDeposits(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ds, err := s.funding.Deposits(r.Context(), q.Get("owner_id"), domain.DepositStatus(q.Get("status")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) approveDeposit(w http.ResponseWriter, r *http.Request) {
	out, err := s.funding.ApproveDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) rejectDeposit(w http.ResponseWriter, r *http.Request) {
	out, err := s.funding.RejectDeposit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listWithdrawals(w http.ResponseWriter, r *http.Request) {
	es, err := s.funding.PendingWithdrawals(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, es)
}

func (s *Server) approveWithdrawal(w http.ResponseWriter, r *http.Request) {
	e, err := s.funding.ApproveWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) rejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	e, err := s.funding.RejectWithdrawal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	rep, err := s.ledger.Audit(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
