package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/matka-settlement/internal/domain"
)

func (c conn) resultColumns() string {
	return `id, market_id, ` + c.d.day("result_day") +
		`, open_pattern, open_digit, close_pattern, close_digit, created_at, updated_at`
}

func scanResult(row scanner) (domain.Result, error) {
	var r domain.Result
	var op, cp sql.NullString
	var od, cd sql.NullInt64
	if err := row.Scan(&r.ID, &r.MarketID, &r.Day, &op, &od, &cp, &cd, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return domain.Result{}, err
	}
	if op.Valid && od.Valid {
		r.Open = &domain.Draw{Pattern: op.String, Digit: int(od.Int64)}
	}
	if cp.Valid && cd.Valid {
		r.Close = &domain.Draw{Pattern: cp.String, Digit: int(cd.Int64)}
	}
	return r, nil
}

func drawArgs(d *domain.Draw) (sql.NullString, sql.NullInt64) {
	if d == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: d.Pattern, Valid: true}, sql.NullInt64{Int64: int64(d.Digit), Valid: true}
}

// LockOrCreateResult garante a linha de (mercado, dia) e a devolve travada.
// Duas declarações concorrentes serializam nesta trava.
func (t *Tx) LockOrCreateResult(ctx context.Context, marketID, day string) (domain.Result, error) {
	now := time.Now().UTC()
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO results (id,market_id,result_day,created_at,updated_at) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (market_id, result_day) DO NOTHING`,
		uuid.NewString(), marketID, day, now, now); err != nil {
		return domain.Result{}, fmt.Errorf("create result %s/%s: %w", marketID, day, err)
	}
	return t.LockResult(ctx, marketID, day)
}

func (t *Tx) LockResult(ctx context.Context, marketID, day string) (domain.Result, error) {
	r, err := scanResult(t.q.QueryRowContext(ctx,
		`SELECT `+t.resultColumns()+` FROM results WHERE market_id=$1 AND result_day=$2`+t.d.forUpdate,
		marketID, day))
	if err != nil {
		return domain.Result{}, notFound(err, "result", marketID+"/"+day)
	}
	return r, nil
}

func (t *Tx) LockResultByID(ctx context.Context, id string) (domain.Result, error) {
	r, err := scanResult(t.q.QueryRowContext(ctx,
		`SELECT `+t.resultColumns()+` FROM results WHERE id=$1`+t.d.forUpdate, id))
	if err != nil {
		return domain.Result{}, notFound(err, "result", id)
	}
	return r, nil
}

// SaveResult regrava as duas sessões da linha já travada.
func (t *Tx) SaveResult(ctx context.Context, r *domain.Result) error {
	op, od := drawArgs(r.Open)
	cp, cd := drawArgs(r.Close)
	r.UpdatedAt = time.Now().UTC()
	_, err := t.q.ExecContext(ctx, `
		UPDATE results SET open_pattern=$1, open_digit=$2, close_pattern=$3, close_digit=$4, updated_at=$5
		WHERE id=$6`,
		op, od, cp, cd, r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.ID, err)
	}
	return nil
}

func (c conn) GetResult(ctx context.Context, marketID, day string) (domain.Result, error) {
	r, err := scanResult(c.q.QueryRowContext(ctx,
		`SELECT `+c.resultColumns()+` FROM results WHERE market_id=$1 AND result_day=$2`, marketID, day))
	if err != nil {
		return domain.Result{}, notFound(err, "result", marketID+"/"+day)
	}
	return r, nil
}

func (c conn) GetResultByID(ctx context.Context, id string) (domain.Result, error) {
	r, err := scanResult(c.q.QueryRowContext(ctx,
		`SELECT `+c.resultColumns()+` FROM results WHERE id=$1`, id))
	if err != nil {
		return domain.Result{}, notFound(err, "result", id)
	}
	return r, nil
}

// ListResults devolve os resultados do mercado, dias mais recentes primeiro.
func (c conn) ListResults(ctx context.Context, marketID string, limit int) ([]domain.Result, error) {
	q := `SELECT ` + c.resultColumns() + ` FROM results WHERE market_id=$1 ORDER BY result_day DESC`
	args := []any{marketID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := c.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list results %s: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
