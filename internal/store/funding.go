package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/matka-settlement/internal/domain"
)

const depositColumns = `id, owner_id, amount, status, reference, ledger_entry_id, created_at, decided_at`

func scanDeposit(row scanner) (domain.Deposit, error) {
	var d domain.Deposit
	var status string
	var entry sql.NullString
	var decided sql.NullTime
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Amount, &status, &d.Reference, &entry, &d.CreatedAt, &decided); err != nil {
		return domain.Deposit{}, err
	}
	d.Status = domain.DepositStatus(status)
	d.LedgerEntryID = entry.String
	if decided.Valid {
		t := decided.Time
		d.DecidedAt = &t
	}
	return d, nil
}

// InsertDeposit registra o pedido como pending.
func (c conn) InsertDeposit(ctx context.Context, d *domain.Deposit) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Status = domain.DepositPending
	d.CreatedAt = time.Now().UTC()
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO deposits (id,owner_id,amount,status,reference,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.OwnerID, d.Amount, string(d.Status), d.Reference, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert deposit: %w", err)
	}
	return nil
}

func (c conn) GetDeposit(ctx context.Context, id string) (domain.Deposit, error) {
	d, err := scanDeposit(c.q.QueryRowContext(ctx, `SELECT `+depositColumns+` FROM deposits WHERE id=$1`, id))
	if err != nil {
		return domain.Deposit{}, notFound(err, "deposit", id)
	}
	return d, nil
}

// ListDeposits filtra por dono e/ou status; vazio não filtra.
func (c conn) ListDeposits(ctx context.Context, ownerID string, status domain.DepositStatus) ([]domain.Deposit, error) {
	q := `SELECT ` + depositColumns + ` FROM deposits WHERE 1=1`
	var args []any
	if ownerID != "" {
		args = append(args, ownerID)
		q += fmt.Sprintf(" AND owner_id=$%d", len(args))
	}
	if status != "" {
		args = append(args, string(status))
		q += fmt.Sprintf(" AND status=$%d", len(args))
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	defer rows.Close()

	var out []domain.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (t *Tx) LockDeposit(ctx context.Context, id string) (domain.Deposit, error) {
	d, err := scanDeposit(t.q.QueryRowContext(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id=$1`+t.d.forUpdate, id))
	if err != nil {
		return domain.Deposit{}, notFound(err, "deposit", id)
	}
	return d, nil
}

// DecideDeposit fecha o pedido; só sai de pending uma vez.
func (t *Tx) DecideDeposit(ctx context.Context, d *domain.Deposit, status domain.DepositStatus, entryID string) error {
	now := time.Now().UTC()
	var entry sql.NullString
	if entryID != "" {
		entry = sql.NullString{String: entryID, Valid: true}
	}
	res, err := t.q.ExecContext(ctx,
		`UPDATE deposits SET status=$1, ledger_entry_id=$2, decided_at=$3 WHERE id=$4 AND status=$5`,
		string(status), entry, now, d.ID, string(domain.DepositPending))
	if err != nil {
		return fmt.Errorf("decide deposit %s: %w", d.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("deposit %s already %s: %w", d.ID, d.Status, domain.ErrInvalidState)
	}
	d.Status, d.LedgerEntryID, d.DecidedAt = status, entryID, &now
	return nil
}

const referralColumns = `referred_id, referrer_id, qualifying_deposit_id, bonus_entry_id, created_at`

func scanReferral(row scanner) (domain.Referral, error) {
	var r domain.Referral
	var dep, entry sql.NullString
	if err := row.Scan(&r.ReferredID, &r.ReferrerID, &dep, &entry, &r.CreatedAt); err != nil {
		return domain.Referral{}, err
	}
	r.QualifyingDepositID, r.BonusEntryID = dep.String, entry.String
	return r, nil
}

// InsertReferral liga o indicado ao indicador. Devolve false se o indicado
// já tinha indicador.
func (c conn) InsertReferral(ctx context.Context, referredID, referrerID string) (bool, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO referrals (referred_id,referrer_id,created_at) VALUES ($1,$2,$3)
		ON CONFLICT (referred_id) DO NOTHING`,
		referredID, referrerID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("insert referral %s: %w", referredID, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (c conn) GetReferral(ctx context.Context, referredID string) (domain.Referral, error) {
	r, err := scanReferral(c.q.QueryRowContext(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referred_id=$1`, referredID))
	if err != nil {
		return domain.Referral{}, notFound(err, "referral", referredID)
	}
	return r, nil
}

// ClaimReferral marca o depósito qualificador. Só o primeiro chamador
// recebe true; o bônus é pago uma única vez.
func (t *Tx) ClaimReferral(ctx context.Context, referredID, depositID string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE referrals SET qualifying_deposit_id=$1 WHERE referred_id=$2 AND qualifying_deposit_id IS NULL`,
		depositID, referredID)
	if err != nil {
		return false, fmt.Errorf("claim referral %s: %w", referredID, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (t *Tx) SetReferralBonus(ctx context.Context, referredID, entryID string) error {
	if _, err := t.q.ExecContext(ctx,
		`UPDATE referrals SET bonus_entry_id=$1 WHERE referred_id=$2`, entryID, referredID); err != nil {
		return fmt.Errorf("referral bonus %s: %w", referredID, err)
	}
	return nil
}
