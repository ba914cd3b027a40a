package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/matka-settlement/internal/domain"
)

func (c conn) bidColumns() string {
	return `id, owner_id, market_id, game_type_id, game_kind, session, selection, stake, status, win_amount, ` +
		c.d.day("market_day") + `, debit_ref, created_at, settled_at`
}

func scanBid(row scanner) (domain.Bid, error) {
	var b domain.Bid
	var kind, session, status string
	var settled sql.NullTime
	err := row.Scan(&b.ID, &b.OwnerID, &b.MarketID, &b.GameTypeID, &kind, &session, &b.Selection, &b.Stake,
		&status, &b.WinAmount, &b.Day, &b.DebitRef, &b.CreatedAt, &settled)
	if err != nil {
		return domain.Bid{}, err
	}
	b.Kind = domain.GameKind(kind)
	b.Session = domain.Session(session)
	b.Status = domain.BidStatus(status)
	if settled.Valid {
		t := settled.Time
		b.SettledAt = &t
	}
	return b, nil
}

func collectBids(rows *sql.Rows) ([]domain.Bid, error) {
	defer rows.Close()
	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertBid grava a aposta como pending. Só é chamado pela colocação
// atômica, depois do débito na mesma transação.
func (t *Tx) InsertBid(ctx context.Context, b *domain.Bid) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Status = domain.BidPending
	b.WinAmount = decimal.Zero
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO bids (id,owner_id,market_id,game_type_id,game_kind,session,selection,stake,status,win_amount,market_day,debit_ref,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		b.ID, b.OwnerID, b.MarketID, b.GameTypeID, string(b.Kind), string(b.Session), b.Selection, b.Stake,
		string(b.Status), b.WinAmount, b.Day, b.DebitRef, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (c conn) GetBid(ctx context.Context, id string) (domain.Bid, error) {
	b, err := scanBid(c.q.QueryRowContext(ctx, `SELECT `+c.bidColumns()+` FROM bids WHERE id=$1`, id))
	if err != nil {
		return domain.Bid{}, notFound(err, "bid", id)
	}
	return b, nil
}

// BidFilter restringe ListBids; campos vazios não filtram.
type BidFilter struct {
	OwnerID  string
	MarketID string
	Day      string
	Status   domain.BidStatus
	Limit    int
}

func (c conn) ListBids(ctx context.Context, f BidFilter) ([]domain.Bid, error) {
	q := `SELECT ` + c.bidColumns() + ` FROM bids WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s=$%d", cond, len(args))
	}
	if f.OwnerID != "" {
		add("owner_id", f.OwnerID)
	}
	if f.MarketID != "" {
		add("market_id", f.MarketID)
	}
	if f.Day != "" {
		add("market_day", f.Day)
	}
	if f.Status != "" {
		add("status", string(f.Status))
	}
	q += ` ORDER BY created_at DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return collectBids(rows)
}

// BidScope seleciona as apostas de um (mercado, dia) para liquidação ou
// revogação. Session vazia ignora a sessão (categorias cruzadas).
type BidScope struct {
	MarketID string
	Day      string
	Session  domain.Session
	Kinds    []domain.GameKind
	Statuses []domain.BidStatus
}

// LockBids carrega as apostas do escopo com trava, em ordem estável.
func (t *Tx) LockBids(ctx context.Context, s BidScope) ([]domain.Bid, error) {
	if len(s.Kinds) == 0 || len(s.Statuses) == 0 {
		return nil, nil
	}
	args := []any{s.MarketID, s.Day}
	q := `SELECT ` + t.bidColumns() + ` FROM bids WHERE market_id=$1 AND market_day=$2`
	if s.Session != "" {
		args = append(args, string(s.Session))
		q += fmt.Sprintf(" AND session=$%d", len(args))
	}
	q += ` AND game_kind IN (` + placeholders(len(args)+1, len(s.Kinds)) + `)`
	for _, k := range s.Kinds {
		args = append(args, string(k))
	}
	q += ` AND status IN (` + placeholders(len(args)+1, len(s.Statuses)) + `)`
	for _, st := range s.Statuses {
		args = append(args, string(st))
	}
	q += ` ORDER BY owner_id, id` + t.d.forUpdate

	rows, err := t.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lock bids %s/%s: %w", s.MarketID, s.Day, err)
	}
	return collectBids(rows)
}

// SettleBid tira a aposta de pending. Devolve false se outra liquidação já
// a reivindicou.
func (t *Tx) SettleBid(ctx context.Context, id string, status domain.BidStatus, win decimal.Decimal) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE bids SET status=$1, win_amount=$2, settled_at=$3 WHERE id=$4 AND status=$5`,
		string(status), win, time.Now().UTC(), id, string(domain.BidPending))
	if err != nil {
		return false, fmt.Errorf("settle bid %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// MarkLost finaliza em massa as apostas pending das categorias indicadas.
func (t *Tx) MarkLost(ctx context.Context, marketID, day string, kinds []domain.GameKind) (int64, error) {
	if len(kinds) == 0 {
		return 0, nil
	}
	args := []any{string(domain.BidLost), decimal.Zero, time.Now().UTC(), marketID, day, string(domain.BidPending)}
	q := `UPDATE bids SET status=$1, win_amount=$2, settled_at=$3
		WHERE market_id=$4 AND market_day=$5 AND status=$6 AND game_kind IN (` + placeholders(len(args)+1, len(kinds)) + `)`
	for _, k := range kinds {
		args = append(args, string(k))
	}
	res, err := t.q.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("mark lost %s/%s: %w", marketID, day, err)
	}
	return rowsAffected(res)
}

// ResetBid devolve uma aposta won/lost para pending com win_amount zerado.
func (t *Tx) ResetBid(ctx context.Context, id string) (bool, error) {
	res, err := t.q.ExecContext(ctx,
		`UPDATE bids SET status=$1, win_amount=$2, settled_at=NULL WHERE id=$3 AND status IN ($4,$5)`,
		string(domain.BidPending), decimal.Zero, id, string(domain.BidWon), string(domain.BidLost))
	if err != nil {
		return false, fmt.Errorf("reset bid %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}
