package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
)

// ReprocessResults repete a liquidação sobre o resultado já gravado, só
// para apostas ainda pending. Chamadas repetidas não pagam duas vezes.
func (e *Engine) ReprocessResults(ctx context.Context, marketID, day string) (Settlement, error) {
	if err := domain.ValidateDay(day); err != nil {
		return Settlement{}, err
	}
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return Settlement{}, err
	}

	out := Settlement{PaidOut: decimal.Zero}
	err = e.withTx(ctx, "reprocess", func(tx *store.Tx) error {
		r, err := tx.LockResult(ctx, m.ID, day)
		if err != nil {
			return err
		}
		out.Result = r
		types, err := gameTypes(ctx, tx)
		if err != nil {
			return err
		}
		for _, s := range []domain.Session{domain.SessionOpen, domain.SessionClose} {
			if !r.Declared(s) {
				continue
			}
			t, err := settleSingle(ctx, tx, types, m, r, s)
			if err != nil {
				return err
			}
			out.add(t)
		}
		if r.Complete() {
			t, err := settleCross(ctx, tx, types, m, r)
			if err != nil {
				return err
			}
			out.add(t)
			out.Cross = true
		}
		return nil
	})
	if err != nil {
		return Settlement{}, err
	}

	e.metrics.reprocessed()
	e.metrics.settled(out.Won, out.Lost, 0, out.PaidOut)
	e.log.Info("results reprocessed",
		zap.String("market_id", m.ID),
		zap.String("day", day),
		zap.Int("won", out.Won),
		zap.Int("lost", out.Lost),
		zap.String("paid_out", out.PaidOut.String()))
	return out, nil
}

// Refund resume a devolução dos stakes de um dia de mercado.
type Refund struct {
	MarketID string          `json:"market_id"`
	Day      string          `json:"day"`
	Refunded int             `json:"refunded"`
	Amount   decimal.Decimal `json:"amount"`
}

// RefundMarket devolve o stake das apostas pending de um dia cancelado.
// Apostas de sessão já declarada ficam de fora: o resultado delas existe.
func (e *Engine) RefundMarket(ctx context.Context, marketID, day string) (Refund, error) {
	if err := domain.ValidateDay(day); err != nil {
		return Refund{}, err
	}
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return Refund{}, err
	}

	out := Refund{MarketID: m.ID, Day: day, Amount: decimal.Zero}
	err = e.withTx(ctx, "refund", func(tx *store.Tx) error {
		r, err := tx.LockResult(ctx, m.ID, day)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		bids, err := tx.LockBids(ctx, store.BidScope{
			MarketID: m.ID, Day: day,
			Kinds: domain.GameKinds, Statuses: []domain.BidStatus{domain.BidPending},
		})
		if err != nil {
			return err
		}

		var credits []ledger.Posting
		for _, b := range bids {
			if b.Kind.CrossSession() && r.Complete() {
				continue
			}
			if !b.Kind.CrossSession() && r.Declared(b.Session) {
				continue
			}
			claimed, err := tx.SettleBid(ctx, b.ID, domain.BidRefunded, decimal.Zero)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}
			amount := decimal.NewFromInt(b.Stake)
			out.Refunded++
			out.Amount = out.Amount.Add(amount)
			credits = append(credits, ledger.Posting{
				OwnerID:     b.OwnerID,
				Amount:      amount,
				Kind:        domain.KindRefund,
				Description: fmt.Sprintf("%s %s refund", m.Name, day),
				ReferenceID: b.ID,
			})
		}
		_, err = ledger.CreditAll(ctx, tx, credits)
		return err
	})
	if err != nil {
		return Refund{}, err
	}

	e.metrics.settled(0, 0, out.Refunded, decimal.Zero)
	e.log.Info("market refunded",
		zap.String("market_id", m.ID),
		zap.String("day", day),
		zap.Int("refunded", out.Refunded),
		zap.String("amount", out.Amount.String()))
	return out, nil
}
