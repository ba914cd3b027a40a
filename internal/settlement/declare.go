package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// Declaration é o pedido de declaração. Digit nil deriva o dígito do
// padrão; Day vazio usa o dia de mercado corrente.
type Declaration struct {
	MarketID string
	Session  domain.Session
	Pattern  string
	Digit    *int
	Day      string
}

// Settlement resume o que uma declaração ou reprocessamento liquidou.
type Settlement struct {
	Result  domain.Result   `json:"result"`
	Session domain.Session  `json:"session,omitempty"`
	Won     int             `json:"won"`
	Lost    int             `json:"lost"`
	PaidOut decimal.Decimal `json:"paid_out"`
	Cross   bool            `json:"cross_settled"`
}

func (s *Settlement) add(o tally) {
	s.Won += o.won
	s.Lost += o.lost
	s.PaidOut = s.PaidOut.Add(o.paid)
}

type tally struct {
	won  int
	lost int
	paid decimal.Decimal
}

// DeclareResult grava o padrão da sessão e liquida, na mesma transação, as
// apostas que ele decide. Sessão já declarada devolve AlreadyDeclaredError
// sem tocar em nada.
func (e *Engine) DeclareResult(ctx context.Context, d Declaration) (Settlement, error) {
	session, err := domain.ParseSession(string(d.Session))
	if err != nil {
		return Settlement{}, err
	}
	draw, err := domain.NewDraw(d.Pattern, d.Digit)
	if err != nil {
		return Settlement{}, err
	}
	m, err := e.store.GetMarket(ctx, d.MarketID)
	if err != nil {
		return Settlement{}, err
	}
	day := d.Day
	if day == "" {
		day = m.MarketDay(e.now())
	} else if err := domain.ValidateDay(day); err != nil {
		return Settlement{}, err
	}

	out := Settlement{Session: session, PaidOut: decimal.Zero}
	err = e.withTx(ctx, "declare", func(tx *store.Tx) error {
		r, err := tx.LockOrCreateResult(ctx, m.ID, day)
		if err != nil {
			return err
		}
		if r.Declared(session) {
			return &domain.AlreadyDeclaredError{MarketID: m.ID, Day: day, Session: session}
		}
		r.Set(session, draw)
		if err := tx.SaveResult(ctx, &r); err != nil {
			return err
		}
		out.Result = r

		types, err := gameTypes(ctx, tx)
		if err != nil {
			return err
		}
		t, err := settleSingle(ctx, tx, types, m, r, session)
		if err != nil {
			return err
		}
		out.add(t)

		if session == domain.SessionClose && r.Declared(domain.SessionOpen) {
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
		outcome := "error"
		if errors.Is(err, domain.ErrAlreadyDeclared) {
			outcome = "already_declared"
		}
		e.metrics.declared(string(session), outcome)
		return Settlement{}, err
	}

	e.metrics.declared(string(session), "declared")
	e.metrics.settled(out.Won, out.Lost, 0, out.PaidOut)
	e.log.Info("result declared",
		zap.String("market_id", m.ID),
		zap.String("day", day),
		zap.String("session", string(session)),
		zap.String("pattern", draw.Pattern),
		zap.Int("digit", draw.Digit),
		zap.Int("won", out.Won),
		zap.Int("lost", out.Lost),
		zap.String("paid_out", out.PaidOut.String()),
		zap.Bool("cross", out.Cross))

	ev := events.ResultDeclared{
		ResultID: out.Result.ID,
		MarketID: m.ID,
		Day:      day,
		Session:  string(session),
		Pattern:  draw.Pattern,
		Digit:    draw.Digit,
		Won:      out.Won,
		Lost:     out.Lost,
		PaidOut:  out.PaidOut.String(),
		Ts:       time.Now().UTC(),
	}
	e.publish("result_declared", func(s EventSink) error { return s.ResultDeclared(ctx, ev) })
	return out, nil
}

// settleSingle paga as apostas de sessão única que casam com o padrão da
// sessão. As que não casam continuam pending.
func settleSingle(ctx context.Context, tx *store.Tx, types map[int64]domain.GameType,
	m domain.Market, r domain.Result, session domain.Session) (tally, error) {
	bids, err := tx.LockBids(ctx, store.BidScope{
		MarketID: m.ID,
		Day:      r.Day,
		Session:  session,
		Kinds:    domain.SingleSessionKinds(),
		Statuses: []domain.BidStatus{domain.BidPending},
	})
	if err != nil {
		return tally{}, err
	}
	return payWinners(ctx, tx, types, m, r, session, bids)
}

// settleCross paga Jodi/Half/Full vencedoras e finaliza as demais como
// lost. Exige o resultado completo.
func settleCross(ctx context.Context, tx *store.Tx, types map[int64]domain.GameType,
	m domain.Market, r domain.Result) (tally, error) {
	if !r.Complete() {
		return tally{}, nil
	}
	bids, err := tx.LockBids(ctx, store.BidScope{
		MarketID: m.ID,
		Day:      r.Day,
		Kinds:    domain.CrossSessionKinds(),
		Statuses: []domain.BidStatus{domain.BidPending},
	})
	if err != nil {
		return tally{}, err
	}
	t, err := payWinners(ctx, tx, types, m, r, domain.SessionClose, bids)
	if err != nil {
		return tally{}, err
	}
	lost, err := tx.MarkLost(ctx, m.ID, r.Day, domain.CrossSessionKinds())
	if err != nil {
		return tally{}, err
	}
	t.lost += int(lost)
	return t, nil
}

func payWinners(ctx context.Context, tx *store.Tx, types map[int64]domain.GameType,
	m domain.Market, r domain.Result, session domain.Session, bids []domain.Bid) (tally, error) {
	t := tally{paid: decimal.Zero}
	var credits []ledger.Posting
	for _, b := range bids {
		if !b.Kind.Matches(b.Selection, r, session) {
			continue
		}
		gt, ok := types[b.GameTypeID]
		if !ok {
			return tally{}, fmt.Errorf("bid %s: game type %d: %w", b.ID, b.GameTypeID, domain.ErrNotFound)
		}
		win := gt.Payout(b.Stake)
		claimed, err := tx.SettleBid(ctx, b.ID, domain.BidWon, win)
		if err != nil {
			return tally{}, err
		}
		if !claimed {
			continue
		}
		t.won++
		t.paid = t.paid.Add(win)
		credits = append(credits, ledger.Posting{
			OwnerID:     b.OwnerID,
			Amount:      win,
			Kind:        domain.KindWin,
			Description: fmt.Sprintf("%s %s %s %s win", m.Name, r.Day, b.Kind, b.Selection),
			ReferenceID: b.ID,
		})
	}
	if _, err := ledger.CreditAll(ctx, tx, credits); err != nil {
		return tally{}, err
	}
	return t, nil
}
