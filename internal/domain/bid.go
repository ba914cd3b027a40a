package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus é o ciclo de vida de uma aposta.
type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidWon      BidStatus = "won"
	BidLost     BidStatus = "lost"
	BidRefunded BidStatus = "refunded"
)

// DefaultMinStake é o piso de stake quando a configuração não define outro.
const DefaultMinStake int64 = 10

// DefaultMaxStake é o teto por seleção; mantém stake × multiplicador e a
// soma da colocação longe do limite de int64.
const DefaultMaxStake int64 = 1_000_000

// Bid é uma aposta persistida.
type Bid struct {
	ID         string          `json:"id"`
	OwnerID    string          `json:"owner_id"`
	MarketID   string          `json:"market_id"`
	GameTypeID int64           `json:"game_type_id"`
	Kind       GameKind        `json:"game_kind"`
	Session    Session         `json:"session"`
	Selection  string          `json:"selection"`
	Stake      int64           `json:"stake"`
	Status     BidStatus       `json:"status"`
	WinAmount  decimal.Decimal `json:"win_amount"`
	Day        string          `json:"day"`
	DebitRef   string          `json:"debit_ref"`
	CreatedAt  time.Time       `json:"created_at"`
	SettledAt  *time.Time      `json:"settled_at,omitempty"`
}

// Terminal indica won/lost, os estados que um revoke pode desfazer.
func (b Bid) Terminal() bool { return b.Status == BidWon || b.Status == BidLost }
