package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet guarda o saldo corrente de um dono.
type Wallet struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AmountScale é a escala dos valores monetários (NUMERIC(18,2)).
const AmountScale = 2

// ValidateAmount aceita valores positivos com no máximo duas casas
// decimais; "10.50" passa, "10.005" não.
func ValidateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return Invalid(field, "must be positive, got %s", amount)
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return Invalid(field, "at most %d decimal places, got %s", AmountScale, amount)
	}
	return nil
}

// EntryKind classifica o lançamento no ledger.
type EntryKind string

const (
	KindDeposit  EntryKind = "deposit"
	KindWithdraw EntryKind = "withdraw"
	KindBid      EntryKind = "bid"
	KindWin      EntryKind = "win"
	KindBonus    EntryKind = "bonus"
	KindRefund   EntryKind = "refund"
	KindReversal EntryKind = "reversal"
)

// Credit indica se o lançamento aumenta o saldo.
func (k EntryKind) Credit() bool {
	switch k {
	case KindDeposit, KindWin, KindBonus, KindRefund:
		return true
	}
	return false
}

// EntryStatus só anda pending→success ou pending→failed, uma única vez.
type EntryStatus string

const (
	EntryPending EntryStatus = "pending"
	EntrySuccess EntryStatus = "success"
	EntryFailed  EntryStatus = "failed"
)

// LedgerEntry é o registro imutável de uma mudança de saldo. Amount é
// sempre positivo; o sinal vem de Kind.
type LedgerEntry struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Kind         EntryKind       `json:"kind"`
	Status       EntryStatus     `json:"status"`
	ReferenceID  string          `json:"reference_id"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Signed devolve o valor com sinal aplicado.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Kind.Credit() {
		return e.Amount
	}
	return e.Amount.Neg()
}
