package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/matka-settlement/internal/domain"
)

const walletColumns = `id, owner_id, balance, version, updated_at`

const entryColumns = `id, wallet_id, amount, kind, status, reference_id, description, balance_after, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanWallet(row scanner) (domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.Version, &w.UpdatedAt)
	return w, err
}

func scanEntry(row scanner) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var kind, status string
	err := row.Scan(&e.ID, &e.WalletID, &e.Amount, &kind, &status, &e.ReferenceID, &e.Description, &e.BalanceAfter, &e.CreatedAt)
	e.Kind = domain.EntryKind(kind)
	e.Status = domain.EntryStatus(status)
	return e, err
}

// GetWallet retorna a carteira do dono sem trava.
func (c conn) GetWallet(ctx context.Context, ownerID string) (domain.Wallet, error) {
	w, err := scanWallet(c.q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id=$1`, ownerID))
	if err != nil {
		return domain.Wallet{}, notFound(err, "wallet", ownerID)
	}
	return w, nil
}

// EnsureWallet cria a carteira com saldo zero se ainda não existir.
// Idempotente por owner_id.
func (c conn) EnsureWallet(ctx context.Context, ownerID string) (domain.Wallet, error) {
	if _, err := c.q.ExecContext(ctx,
		`INSERT INTO wallets(id, owner_id, balance, version, updated_at) VALUES($1,$2,$3,1,$4)
		 ON CONFLICT (owner_id) DO NOTHING`,
		uuid.NewString(), ownerID, decimal.Zero, time.Now().UTC()); err != nil {
		return domain.Wallet{}, fmt.Errorf("ensure wallet %s: %w", ownerID, err)
	}
	return c.GetWallet(ctx, ownerID)
}

// LockWallet carrega a carteira com lock pessimista na linha. Com create,
// a carteira é criada antes (créditos para quem nunca depositou).
func (t *Tx) LockWallet(ctx context.Context, ownerID string, create bool) (domain.Wallet, error) {
	if create {
		if _, err := t.EnsureWallet(ctx, ownerID); err != nil {
			return domain.Wallet{}, err
		}
	}
	w, err := scanWallet(t.q.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id=$1`+t.d.forUpdate, ownerID))
	if err != nil {
		return domain.Wallet{}, notFound(err, "wallet", ownerID)
	}
	return w, nil
}

// SetBalance grava o novo saldo calculado sob o lock da carteira.
func (t *Tx) SetBalance(ctx context.Context, walletID string, balance decimal.Decimal) error {
	_, err := t.q.ExecContext(ctx,
		`UPDATE wallets SET balance=$1, version=version+1, updated_at=$2 WHERE id=$3`,
		balance, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("set balance %s: %w", walletID, err)
	}
	return nil
}

// InsertEntry registra um lançamento no ledger. ID e CreatedAt são
// preenchidos quando vazios.
func (t *Tx) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO ledger_entries(`+entryColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.WalletID, e.Amount, string(e.Kind), string(e.Status), e.ReferenceID, e.Description, e.BalanceAfter, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// LockEntry carrega um lançamento com trava (holds de saque).
func (t *Tx) LockEntry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	e, err := scanEntry(t.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`+t.d.forUpdate, id))
	if err != nil {
		return domain.LedgerEntry{}, notFound(err, "ledger entry", id)
	}
	return e, nil
}

// SetEntryStatus move o status somente a partir de from; devolve
// ErrInvalidState se outra transação já decidiu o lançamento.
func (t *Tx) SetEntryStatus(ctx context.Context, id string, from, to domain.EntryStatus) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE ledger_entries SET status=$1 WHERE id=$2 AND status=$3`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("set entry status %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("entry %s not %s: %w", id, from, domain.ErrInvalidState)
	}
	return nil
}

// GetEntry retorna um lançamento pelo id.
func (c conn) GetEntry(ctx context.Context, id string) (domain.LedgerEntry, error) {
	e, err := scanEntry(c.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id=$1`, id))
	if err != nil {
		return domain.LedgerEntry{}, notFound(err, "ledger entry", id)
	}
	return e, nil
}

// ListEntries lista os lançamentos da carteira, mais recentes primeiro.
// limit <= 0 devolve todos.
func (c conn) ListEntries(ctx context.Context, walletID string, limit int) ([]domain.LedgerEntry, error) {
	q := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE wallet_id=$1 ORDER BY created_at DESC, id DESC`
	args := []any{walletID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries %s: %w", walletID, err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// EntriesByReference devolve os lançamentos ligados a uma referência
// (id de aposta, depósito, lote de apostas).
func (c conn) EntriesByReference(ctx context.Context, ref string) ([]domain.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE reference_id=$1 ORDER BY created_at, id`, ref)
	if err != nil {
		return nil, fmt.Errorf("entries by reference %s: %w", ref, err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WalletOwner resolve o dono a partir do id da carteira.
func (c conn) WalletOwner(ctx context.Context, walletID string) (string, error) {
	var owner string
	err := c.q.QueryRowContext(ctx, `SELECT owner_id FROM wallets WHERE id=$1`, walletID).Scan(&owner)
	if err != nil {
		return "", notFound(err, "wallet", walletID)
	}
	return owner, nil
}

// PendingEntries lista os lançamentos pending de um tipo (saques aguardando
// decisão), mais antigos primeiro.
func (c conn) PendingEntries(ctx context.Context, kind domain.EntryKind) ([]domain.LedgerEntry, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE kind=$1 AND status=$2 ORDER BY created_at, id`,
		string(kind), string(domain.EntryPending))
	if err != nil {
		return nil, fmt.Errorf("pending %s entries: %w", kind, err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
