package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// Revocation resume uma revogação: a sessão limpa, quantas apostas voltaram
// a pending e quanto foi estornado.
type Revocation struct {
	Result    domain.Result   `json:"result"`
	Session   domain.Session  `json:"session"`
	Reopened  int             `json:"reopened"`
	Reclaimed decimal.Decimal `json:"reclaimed"`
}

// RevokeResult limpa uma sessão (close antes de open) e desfaz exatamente
// o que ela liquidou: apostas won/lost voltam a pending e cada prêmio é
// estornado com um lançamento reversal. Se algum ganhador já não tem saldo
// para o estorno, nada é revogado.
func (e *Engine) RevokeResult(ctx context.Context, resultID string) (Revocation, error) {
	out := Revocation{Reclaimed: decimal.Zero}
	var market domain.Market
	err := e.withTx(ctx, "revoke", func(tx *store.Tx) error {
		r, err := tx.LockResultByID(ctx, resultID)
		if err != nil {
			return err
		}
		session, ok := r.RevocableSession()
		if !ok {
			return fmt.Errorf("result %s: %w", resultID, domain.ErrNotDeclared)
		}
		if market, err = tx.GetMarket(ctx, r.MarketID); err != nil {
			return err
		}
		r.Clear(session)
		if err := tx.SaveResult(ctx, &r); err != nil {
			return err
		}
		out.Result, out.Session = r, session

		terminal := []domain.BidStatus{domain.BidWon, domain.BidLost}
		bids, err := tx.LockBids(ctx, store.BidScope{
			MarketID: r.MarketID, Day: r.Day, Session: session,
			Kinds: domain.SingleSessionKinds(), Statuses: terminal,
		})
		if err != nil {
			return err
		}
		// os cruzados só são decididos na declaração do close
		if session == domain.SessionClose {
			cross, err := tx.LockBids(ctx, store.BidScope{
				MarketID: r.MarketID, Day: r.Day,
				Kinds: domain.CrossSessionKinds(), Statuses: terminal,
			})
			if err != nil {
				return err
			}
			bids = append(bids, cross...)
		}

		var debits []ledger.Posting
		for _, b := range bids {
			reset, err := tx.ResetBid(ctx, b.ID)
			if err != nil {
				return err
			}
			if !reset {
				continue
			}
			out.Reopened++
			if b.Status != domain.BidWon || !b.WinAmount.IsPositive() {
				continue
			}
			out.Reclaimed = out.Reclaimed.Add(b.WinAmount)
			debits = append(debits, ledger.Posting{
				OwnerID:     b.OwnerID,
				Amount:      b.WinAmount,
				Kind:        domain.KindReversal,
				Description: fmt.Sprintf("%s %s %s revoked", market.Name, r.Day, session),
				ReferenceID: b.ID,
			})
		}
		_, err = ledger.DebitAll(ctx, tx, debits)
		return err
	})
	if err != nil {
		return Revocation{}, err
	}

	e.metrics.revoked(out.Reclaimed)
	e.log.Info("result revoked",
		zap.String("result_id", resultID),
		zap.String("market_id", market.ID),
		zap.String("day", out.Result.Day),
		zap.String("session", string(out.Session)),
		zap.Int("reopened", out.Reopened),
		zap.String("reclaimed", out.Reclaimed.String()))

	ev := events.ResultRevoked{
		ResultID:  resultID,
		MarketID:  market.ID,
		Day:       out.Result.Day,
		Session:   string(out.Session),
		Reopened:  out.Reopened,
		Reclaimed: out.Reclaimed.String(),
		Ts:        time.Now().UTC(),
	}
	e.publish("result_revoked", func(s EventSink) error { return s.ResultRevoked(ctx, ev) })
	return out, nil
}
