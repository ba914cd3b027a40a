package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus só anda pending→approved ou pending→rejected.
type DepositStatus string

const (
	DepositPending  DepositStatus = "pending"
	DepositApproved DepositStatus = "approved"
	DepositRejected DepositStatus = "rejected"
)

// Deposit é um pedido de depósito aguardando decisão do admin.
type Deposit struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        DepositStatus   `json:"status"`
	Reference     string          `json:"reference"`
	LedgerEntryID string          `json:"ledger_entry_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
}

// Referral liga um indicado ao seu indicador. O bônus é pago uma única vez,
// no primeiro depósito aprovado que atinja o mínimo.
type Referral struct {
	ReferredID          string    `json:"referred_id"`
	ReferrerID          string    `json:"referrer_id"`
	QualifyingDepositID string    `json:"qualifying_deposit_id,omitempty"`
	BonusEntryID        string    `json:"bonus_entry_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Paid indica que o bônus já foi consumido.
func (r Referral) Paid() bool { return r.QualifyingDepositID != "" }
