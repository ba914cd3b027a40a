package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/matka-settlement/internal/domain"
)

func (c conn) marketColumns() string {
	return `id, name, ` + c.d.clock("open_time") + `, ` + c.d.clock("close_time") +
		`, enabled, betting_enabled, created_at, updated_at`
}

func scanMarket(row scanner) (domain.Market, error) {
	var m domain.Market
	var openAt, closeAt string
	if err := row.Scan(&m.ID, &m.Name, &openAt, &closeAt, &m.Enabled, &m.BettingEnabled, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return domain.Market{}, err
	}
	var err error
	if m.OpenTime, err = domain.ParseTimeOfDay(openAt); err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", m.ID, err)
	}
	if m.CloseTime, err = domain.ParseTimeOfDay(closeAt); err != nil {
		return domain.Market{}, fmt.Errorf("market %s: %w", m.ID, err)
	}
	return m, nil
}

// clockText grava sempre HH:MM:SS, aceito por TIME no Postgres e
// comparável como texto no SQLite.
func clockText(t domain.TimeOfDay) string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// CreateMarket insere o mercado; ID e timestamps são preenchidos aqui.
func (c conn) CreateMarket(ctx context.Context, m *domain.Market) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO markets (id,name,open_time,close_time,enabled,betting_enabled,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ID, m.Name, clockText(m.OpenTime), clockText(m.CloseTime), m.Enabled, m.BettingEnabled, now, now)
	if err != nil {
		return fmt.Errorf("create market %s: %w", m.Name, err)
	}
	return nil
}

// UpdateMarket regrava horários e flags do mercado.
func (c conn) UpdateMarket(ctx context.Context, m *domain.Market) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := c.q.ExecContext(ctx, `
		UPDATE markets SET name=$1, open_time=$2, close_time=$3, enabled=$4, betting_enabled=$5, updated_at=$6
		WHERE id=$7`,
		m.Name, clockText(m.OpenTime), clockText(m.CloseTime), m.Enabled, m.BettingEnabled, m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update market %s: %w", m.ID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("market %s: %w", m.ID, domain.ErrNotFound)
	}
	return nil
}

func (c conn) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := scanMarket(c.q.QueryRowContext(ctx,
		`SELECT `+c.marketColumns()+` FROM markets WHERE id=$1`, id))
	if err != nil {
		return domain.Market{}, notFound(err, "market", id)
	}
	return m, nil
}

// GetMarketByName resolve o nome publicado pelo feed de resultados.
func (c conn) GetMarketByName(ctx context.Context, name string) (domain.Market, error) {
	m, err := scanMarket(c.q.QueryRowContext(ctx,
		`SELECT `+c.marketColumns()+` FROM markets WHERE name=$1`, name))
	if err != nil {
		return domain.Market{}, notFound(err, "market", name)
	}
	return m, nil
}

func (c conn) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+c.marketColumns()+` FROM markets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertGameType grava a linha do catálogo pelo id estável.
func (c conn) UpsertGameType(ctx context.Context, g domain.GameType) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO game_types (id,code,name,payout_multiplier) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET code=excluded.code, name=excluded.name, payout_multiplier=excluded.payout_multiplier`,
		g.ID, string(g.Kind), g.Name, g.PayoutMultiplier)
	if err != nil {
		return fmt.Errorf("upsert game type %s: %w", g.Kind, err)
	}
	return nil
}

func scanGameType(row scanner) (domain.GameType, error) {
	var g domain.GameType
	var code string
	err := row.Scan(&g.ID, &code, &g.Name, &g.PayoutMultiplier)
	g.Kind = domain.GameKind(code)
	return g, err
}

func (c conn) GetGameType(ctx context.Context, id int64) (domain.GameType, error) {
	g, err := scanGameType(c.q.QueryRowContext(ctx,
		`SELECT id, code, name, payout_multiplier FROM game_types WHERE id=$1`, id))
	if err != nil {
		return domain.GameType{}, notFound(err, "game type", fmt.Sprint(id))
	}
	return g, nil
}

func (c conn) ListGameTypes(ctx context.Context) ([]domain.GameType, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT id, code, name, payout_multiplier FROM game_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list game types: %w", err)
	}
	defer rows.Close()

	var out []domain.GameType
	for rows.Next() {
		g, err := scanGameType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
