// Package ledger é a única porta de mutação de saldo. As funções de pacote
// rodam dentro de uma transação do chamador (colocação, liquidação,
// revogação, depósitos); Ledger abre a própria transação para os usos
// avulsos.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/store"
)

// Posting descreve um lançamento a aplicar.
type Posting struct {
	OwnerID     string
	Amount      decimal.Decimal
	Kind        domain.EntryKind
	Description string
	ReferenceID string
}

func (p Posting) validate(credit bool) error {
	if p.OwnerID == "" {
		return domain.Invalid("owner_id", "required")
	}
	if err := domain.ValidateAmount("amount", p.Amount); err != nil {
		return err
	}
	if p.Kind.Credit() != credit {
		return domain.Invalid("kind", "%s cannot be used for this operation", p.Kind)
	}
	return nil
}

// Credit soma ao saldo e grava um lançamento success. A carteira é criada
// se ainda não existir (ganhador ou indicador sem depósito prévio).
func Credit(ctx context.Context, tx *store.Tx, p Posting) (domain.LedgerEntry, error) {
	if err := p.validate(true); err != nil {
		return domain.LedgerEntry{}, err
	}
	w, err := tx.LockWallet(ctx, p.OwnerID, true)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return apply(ctx, tx, w, p, w.Balance.Add(p.Amount), domain.EntrySuccess)
}

// Debit confere saldo suficiente, subtrai e grava um lançamento success.
func Debit(ctx context.Context, tx *store.Tx, p Posting) (domain.LedgerEntry, error) {
	return debit(ctx, tx, p, domain.EntrySuccess)
}

// Reserve debita já e deixa o lançamento pending até Commit ou Void.
func Reserve(ctx context.Context, tx *store.Tx, p Posting) (domain.LedgerEntry, error) {
	return debit(ctx, tx, p, domain.EntryPending)
}

func debit(ctx context.Context, tx *store.Tx, p Posting, status domain.EntryStatus) (domain.LedgerEntry, error) {
	if err := p.validate(false); err != nil {
		return domain.LedgerEntry{}, err
	}
	w, err := tx.LockWallet(ctx, p.OwnerID, false)
	if errors.Is(err, domain.ErrNotFound) {
		// sem carteira equivale a saldo zero
		return domain.LedgerEntry{}, fmt.Errorf("wallet %s: %w", p.OwnerID, domain.ErrInsufficientFunds)
	}
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if w.Balance.LessThan(p.Amount) {
		return domain.LedgerEntry{}, fmt.Errorf("wallet %s has %s, needs %s: %w",
			p.OwnerID, w.Balance.StringFixed(2), p.Amount.StringFixed(2), domain.ErrInsufficientFunds)
	}
	return apply(ctx, tx, w, p, w.Balance.Sub(p.Amount), status)
}

func apply(ctx context.Context, tx *store.Tx, w domain.Wallet, p Posting, bal decimal.Decimal, status domain.EntryStatus) (domain.LedgerEntry, error) {
	if err := tx.SetBalance(ctx, w.ID, bal); err != nil {
		return domain.LedgerEntry{}, err
	}
	e := domain.LedgerEntry{
		WalletID:     w.ID,
		Amount:       p.Amount,
		Kind:         p.Kind,
		Status:       status,
		ReferenceID:  p.ReferenceID,
		Description:  p.Description,
		BalanceAfter: bal,
	}
	if err := tx.InsertEntry(ctx, &e); err != nil {
		return domain.LedgerEntry{}, err
	}
	return e, nil
}

// Commit efetiva uma reserva. Idempotente se já estiver success.
func Commit(ctx context.Context, tx *store.Tx, entryID string) (domain.LedgerEntry, error) {
	e, err := tx.LockEntry(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	switch e.Status {
	case domain.EntrySuccess:
		return e, nil
	case domain.EntryFailed:
		return domain.LedgerEntry{}, fmt.Errorf("entry %s already voided: %w", entryID, domain.ErrInvalidState)
	}
	if err := tx.SetEntryStatus(ctx, e.ID, domain.EntryPending, domain.EntrySuccess); err != nil {
		return domain.LedgerEntry{}, err
	}
	e.Status = domain.EntrySuccess
	return e, nil
}

// Void cancela uma reserva e devolve o valor ao saldo. O lançamento vira
// failed e deixa de contar na auditoria. Idempotente se já estiver failed.
func Void(ctx context.Context, tx *store.Tx, entryID string) (domain.LedgerEntry, error) {
	e, err := tx.LockEntry(ctx, entryID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	switch e.Status {
	case domain.EntryFailed:
		return e, nil
	case domain.EntrySuccess:
		return domain.LedgerEntry{}, fmt.Errorf("entry %s already committed: %w", entryID, domain.ErrInvalidState)
	}
	if e.Kind.Credit() {
		return domain.LedgerEntry{}, fmt.Errorf("entry %s is not a hold: %w", entryID, domain.ErrInvalidState)
	}

	w, err := walletOf(ctx, tx, e.WalletID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := tx.SetBalance(ctx, w.ID, w.Balance.Add(e.Amount)); err != nil {
		return domain.LedgerEntry{}, err
	}
	if err := tx.SetEntryStatus(ctx, e.ID, domain.EntryPending, domain.EntryFailed); err != nil {
		return domain.LedgerEntry{}, err
	}
	e.Status = domain.EntryFailed
	return e, nil
}

// walletOf trava a carteira dona do lançamento.
func walletOf(ctx context.Context, tx *store.Tx, walletID string) (domain.Wallet, error) {
	owner, err := tx.WalletOwner(ctx, walletID)
	if err != nil {
		return domain.Wallet{}, err
	}
	return tx.LockWallet(ctx, owner, false)
}

// CreditAll aplica vários créditos em ordem de dono, para que transações
// concorrentes travem as carteiras sempre na mesma sequência.
func CreditAll(ctx context.Context, tx *store.Tx, ps []Posting) ([]domain.LedgerEntry, error) {
	return applyAll(ctx, tx, ps, Credit)
}

// DebitAll é o par de CreditAll; falha inteira se qualquer saldo faltar.
func DebitAll(ctx context.Context, tx *store.Tx, ps []Posting) ([]domain.LedgerEntry, error) {
	return applyAll(ctx, tx, ps, Debit)
}

func applyAll(ctx context.Context, tx *store.Tx, ps []Posting,
	fn func(context.Context, *store.Tx, Posting) (domain.LedgerEntry, error)) ([]domain.LedgerEntry, error) {
	sorted := make([]Posting, len(ps))
	copy(sorted, ps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OwnerID < sorted[j].OwnerID })

	out := make([]domain.LedgerEntry, 0, len(sorted))
	for _, p := range sorted {
		e, err := fn(ctx, tx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Ledger expõe as primitivas com transação própria.
type Ledger struct {
	store *store.Store
	log   *zap.Logger
}

func New(s *store.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: s, log: log}
}

func (l *Ledger) Credit(ctx context.Context, p Posting) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = Credit(ctx, tx, p)
		return err
	})
	return e, err
}

func (l *Ledger) Debit(ctx context.Context, p Posting) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = Debit(ctx, tx, p)
		return err
	})
	return e, err
}

// Balance devolve a carteira, criando-a vazia se necessário.
func (l *Ledger) Balance(ctx context.Context, owner string) (domain.Wallet, error) {
	if owner == "" {
		return domain.Wallet{}, domain.Invalid("owner_id", "required")
	}
	return l.store.EnsureWallet(ctx, owner)
}

// History lista os lançamentos do dono, mais recentes primeiro.
func (l *Ledger) History(ctx context.Context, owner string, limit int) ([]domain.LedgerEntry, error) {
	w, err := l.store.GetWallet(ctx, owner)
	if err != nil {
		return nil, err
	}
	return l.store.ListEntries(ctx, w.ID, limit)
}

// AuditReport compara o saldo gravado com a soma do ledger.
type AuditReport struct {
	OwnerID    string          `json:"owner_id"`
	Balance    decimal.Decimal `json:"balance"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Entries    int             `json:"entries"`
	Consistent bool            `json:"consistent"`
}

// Audit soma os lançamentos não-failed com sinal e compara com o saldo.
// Lançamentos pending contam: o valor já saiu do saldo.
func (l *Ledger) Audit(ctx context.Context, owner string) (AuditReport, error) {
	rep := AuditReport{OwnerID: owner, LedgerSum: decimal.Zero}
	err := l.store.WithTx(ctx, func(tx *store.Tx) error {
		w, err := tx.LockWallet(ctx, owner, false)
		if err != nil {
			return err
		}
		entries, err := tx.ListEntries(ctx, w.ID, 0)
		if err != nil {
			return err
		}
		rep.Balance = w.Balance
		for _, e := range entries {
			if e.Status == domain.EntryFailed {
				continue
			}
			rep.LedgerSum = rep.LedgerSum.Add(e.Signed())
			rep.Entries++
		}
		return nil
	})
	if err != nil {
		return AuditReport{}, err
	}
	rep.Consistent = rep.Balance.Equal(rep.LedgerSum)
	if !rep.Consistent {
		l.log.Error("wallet audit mismatch",
			zap.String("owner_id", owner),
			zap.String("balance", rep.Balance.String()),
			zap.String("ledger_sum", rep.LedgerSum.String()))
	}
	return rep, nil
}
