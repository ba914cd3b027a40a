package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/store"
)

// MarketInput cria ou altera um mercado. Em UpdateMarket campos nil não
// mudam.
type MarketInput struct {
	Name           *string
	OpenTime       *string
	CloseTime      *string
	Enabled        *bool
	BettingEnabled *bool
}

func (in MarketInput) apply(m *domain.Market) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Invalid("name", "required")
		}
		m.Name = name
	}
	if in.OpenTime != nil {
		t, err := domain.ParseTimeOfDay(*in.OpenTime)
		if err != nil {
			return domain.Invalid("open_time", "%v", err)
		}
		m.OpenTime = t
	}
	if in.CloseTime != nil {
		t, err := domain.ParseTimeOfDay(*in.CloseTime)
		if err != nil {
			return domain.Invalid("close_time", "%v", err)
		}
		m.CloseTime = t
	}
	if in.Enabled != nil {
		m.Enabled = *in.Enabled
	}
	if in.BettingEnabled != nil {
		m.BettingEnabled = *in.BettingEnabled
	}
	return nil
}

func (e *Engine) CreateMarket(ctx context.Context, in MarketInput) (domain.Market, error) {
	if in.Name == nil || in.OpenTime == nil || in.CloseTime == nil {
		return domain.Market{}, domain.Invalid("market", "name, open_time and close_time are required")
	}
	m := domain.Market{Enabled: true, BettingEnabled: true}
	if err := in.apply(&m); err != nil {
		return domain.Market{}, err
	}
	if err := e.nameFree(ctx, m.Name, ""); err != nil {
		return domain.Market{}, err
	}
	if err := e.store.CreateMarket(ctx, &m); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func (e *Engine) UpdateMarket(ctx context.Context, id string, in MarketInput) (domain.Market, error) {
	m, err := e.store.GetMarket(ctx, id)
	if err != nil {
		return domain.Market{}, err
	}
	if err := in.apply(&m); err != nil {
		return domain.Market{}, err
	}
	if err := e.nameFree(ctx, m.Name, m.ID); err != nil {
		return domain.Market{}, err
	}
	if err := e.store.UpdateMarket(ctx, &m); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func (e *Engine) nameFree(ctx context.Context, name, selfID string) error {
	other, err := e.store.GetMarketByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case other.ID != selfID:
		return fmt.Errorf("market name %q taken: %w", name, domain.ErrInvalidState)
	}
	return nil
}

func (e *Engine) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return e.store.GetMarket(ctx, id)
}

func (e *Engine) MarketByName(ctx context.Context, name string) (domain.Market, error) {
	return e.store.GetMarketByName(ctx, name)
}

func (e *Engine) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	return e.store.ListMarkets(ctx)
}

func (e *Engine) GameTypes(ctx context.Context) ([]domain.GameType, error) {
	return e.store.ListGameTypes(ctx)
}

// SessionStatus é a visão das janelas de aposta de um mercado agora.
type SessionStatus struct {
	MarketID  string `json:"market_id"`
	Day       string `json:"day"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
	Overnight bool   `json:"overnight"`
	Open      bool   `json:"open"`
	Close     bool   `json:"close"`
}

func (e *Engine) SessionStatus(ctx context.Context, marketID string) (SessionStatus, error) {
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return SessionStatus{}, err
	}
	now := e.now()
	return SessionStatus{
		MarketID:  m.ID,
		Day:       m.MarketDay(now),
		OpenTime:  m.OpenTime.String(),
		CloseTime: m.CloseTime.String(),
		Overnight: m.Overnight(),
		Open:      m.IsSessionOpen(domain.SessionOpen, now),
		Close:     m.IsSessionOpen(domain.SessionClose, now),
	}, nil
}

// Leituras usadas pela API e pelo CLI.

func (e *Engine) Bid(ctx context.Context, id string) (domain.Bid, error) {
	return e.store.GetBid(ctx, id)
}

func (e *Engine) Bids(ctx context.Context, f store.BidFilter) ([]domain.Bid, error) {
	return e.store.ListBids(ctx, f)
}

func (e *Engine) Result(ctx context.Context, marketID, day string) (domain.Result, error) {
	if err := domain.ValidateDay(day); err != nil {
		return domain.Result{}, err
	}
	return e.store.GetResult(ctx, marketID, day)
}

func (e *Engine) ResultByID(ctx context.Context, id string) (domain.Result, error) {
	return e.store.GetResultByID(ctx, id)
}

func (e *Engine) Results(ctx context.Context, marketID string, limit int) ([]domain.Result, error) {
	return e.store.ListResults(ctx, marketID, limit)
}
