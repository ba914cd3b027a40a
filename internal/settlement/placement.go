package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/pkg/contracts/events"
)

// BidItem é uma seleção com o seu stake.
type BidItem struct {
	Selection string
	Stake     int64
}

// BidRequest é uma colocação com N seleções da mesma categoria e sessão,
// paga com um único débito.
type BidRequest struct {
	OwnerID    string
	MarketID   string
	GameTypeID int64
	Session    domain.Session
	Items      []BidItem
}

// Placement é o resultado de PlaceBid: as apostas criadas, o total
// debitado e o saldo depois do débito.
type Placement struct {
	Bids     []domain.Bid    `json:"bids"`
	Total    int64           `json:"total"`
	Balance  decimal.Decimal `json:"balance"`
	DebitRef string          `json:"debit_ref"`
}

func (e *Engine) validateBid(req BidRequest, kind domain.GameKind) (int64, error) {
	if strings.TrimSpace(req.OwnerID) == "" {
		return 0, domain.Invalid("owner_id", "required")
	}
	if len(req.Items) == 0 {
		return 0, domain.Invalid("items", "at least one selection is required")
	}
	if kind.CrossSession() && req.Session != domain.SessionOpen {
		return 0, domain.Invalid("session", "%s bids are placed on the open session", kind)
	}
	var total int64
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d].stake", i)
		if it.Stake < e.minStake {
			return 0, domain.Invalid(field, "must be at least %d, got %d", e.minStake, it.Stake)
		}
		if it.Stake > e.maxStake {
			return 0, domain.Invalid(field, "must be at most %d, got %d", e.maxStake, it.Stake)
		}
		if err := kind.ValidateSelection(it.Selection); err != nil {
			return 0, err
		}
		if total > math.MaxInt64-it.Stake {
			return 0, domain.Invalid(field, "total stake overflows")
		}
		total += it.Stake
	}
	return total, nil
}

// PlaceBid valida, confere a janela da sessão e, numa transação, debita o
// total e cria uma aposta pending por seleção. Qualquer falha desfaz tudo.
func (e *Engine) PlaceBid(ctx context.Context, req BidRequest) (Placement, error) {
	session, err := domain.ParseSession(string(req.Session))
	if err != nil {
		return Placement{}, err
	}
	req.Session = session
	m, err := e.store.GetMarket(ctx, req.MarketID)
	if err != nil {
		return Placement{}, err
	}
	gt, err := e.store.GetGameType(ctx, req.GameTypeID)
	if errors.Is(err, domain.ErrNotFound) {
		return Placement{}, domain.Invalid("game_type_id", "unknown game type %d", req.GameTypeID)
	}
	if err != nil {
		return Placement{}, err
	}
	total, err := e.validateBid(req, gt.Kind)
	if err != nil {
		return Placement{}, err
	}

	now := e.now()
	if !m.IsSessionOpen(req.Session, now) {
		return Placement{}, &domain.MarketClosedError{MarketID: m.ID, Session: req.Session}
	}
	day := m.MarketDay(now)

	out := Placement{Total: total, DebitRef: uuid.NewString()}
	err = e.withTx(ctx, "place_bid", func(tx *store.Tx) error {
		entry, err := ledger.Debit(ctx, tx, ledger.Posting{
			OwnerID:     req.OwnerID,
			Amount:      decimal.NewFromInt(total),
			Kind:        domain.KindBid,
			Description: fmt.Sprintf("%s %s %s x%d", m.Name, gt.Kind, req.Session, len(req.Items)),
			ReferenceID: out.DebitRef,
		})
		if err != nil {
			return err
		}
		out.Balance = entry.BalanceAfter

		createdAt := time.Now().UTC()
		out.Bids = make([]domain.Bid, 0, len(req.Items))
		for _, it := range req.Items {
			b := domain.Bid{
				OwnerID:    req.OwnerID,
				MarketID:   m.ID,
				GameTypeID: gt.ID,
				Kind:       gt.Kind,
				Session:    req.Session,
				Selection:  it.Selection,
				Stake:      it.Stake,
				Day:        day,
				DebitRef:   out.DebitRef,
				CreatedAt:  createdAt,
			}
			if err := tx.InsertBid(ctx, &b); err != nil {
				return err
			}
			out.Bids = append(out.Bids, b)
		}
		return nil
	})
	if err != nil {
		return Placement{}, err
	}

	e.metrics.placed(string(gt.Kind), len(out.Bids), total)
	e.log.Info("bids placed",
		zap.String("owner_id", req.OwnerID),
		zap.String("market_id", m.ID),
		zap.String("game_kind", string(gt.Kind)),
		zap.String("session", string(req.Session)),
		zap.String("day", day),
		zap.Int("count", len(out.Bids)),
		zap.Int64("total", total))

	ids := make([]string, len(out.Bids))
	for i, b := range out.Bids {
		ids[i] = b.ID
	}
	ev := events.BidsPlaced{
		OwnerID:    req.OwnerID,
		MarketID:   m.ID,
		GameKind:   string(gt.Kind),
		Session:    string(req.Session),
		Day:        day,
		BidIDs:     ids,
		TotalStake: total,
		DebitRef:   out.DebitRef,
		TsUnixMs:   time.Now().UnixMilli(),
	}
	e.publish("bids_placed", func(s EventSink) error { return s.BidsPlaced(ctx, ev) })
	return out, nil
}
