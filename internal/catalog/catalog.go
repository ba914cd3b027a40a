// Package catalog carrega o catálogo de categorias de aposta e mercados
// (arquivo TOML) e o aplica no banco. É o seed do `matkactl seed`.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/radieske/matka-settlement/internal/domain"
)

//go:embed default.toml
var defaultCatalog string

type GameTypeEntry struct {
	ID               int64  `toml:"id"`
	Kind             string `toml:"kind"`
	Name             string `toml:"name"`
	PayoutMultiplier string `toml:"payout_multiplier"`
}

type MarketEntry struct {
	Name           string `toml:"name"`
	Open           string `toml:"open"`
	Close          string `toml:"close"`
	Enabled        *bool  `toml:"enabled"`
	BettingEnabled *bool  `toml:"betting_enabled"`
}

type Catalog struct {
	GameTypes []GameTypeEntry `toml:"game_type"`
	Markets   []MarketEntry   `toml:"market"`
}

// Parse decodifica o TOML e rejeita chaves desconhecidas.
func Parse(data string) (Catalog, error) {
	var c Catalog
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Catalog{}, fmt.Errorf("parse catalog: unknown keys %v", undecoded)
	}
	return c, nil
}

func Load(path string) (Catalog, error) {
	var c Catalog
	md, err := toml.DecodeFile(path, &c)
	if err != nil {
		return Catalog{}, fmt.Errorf("load catalog %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Catalog{}, fmt.Errorf("load catalog %s: unknown keys %v", path, undecoded)
	}
	return c, nil
}

// Default devolve o catálogo embarcado no binário.
func Default() Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadOrDefault usa o arquivo quando informado.
func LoadOrDefault(path string) (Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// GameTypeList converte e valida as categorias.
func (c Catalog) GameTypeList() ([]domain.GameType, error) {
	seen := map[int64]bool{}
	out := make([]domain.GameType, 0, len(c.GameTypes))
	for _, e := range c.GameTypes {
		kind := domain.GameKind(e.Kind)
		if !kind.Valid() {
			return nil, fmt.Errorf("game type %d: unknown kind %q", e.ID, e.Kind)
		}
		if e.ID <= 0 || seen[e.ID] {
			return nil, fmt.Errorf("game type %s: bad or duplicate id %d", e.Kind, e.ID)
		}
		seen[e.ID] = true
		mult, err := decimal.NewFromString(e.PayoutMultiplier)
		if err != nil || domain.ValidateAmount("payout_multiplier", mult) != nil {
			return nil, fmt.Errorf("game type %s: bad payout multiplier %q", e.Kind, e.PayoutMultiplier)
		}
		name := e.Name
		if name == "" {
			name = e.Kind
		}
		out = append(out, domain.GameType{ID: e.ID, Kind: kind, Name: name, PayoutMultiplier: mult})
	}
	return out, nil
}

// MarketList converte os mercados; flags ausentes valem true.
func (c Catalog) MarketList() ([]domain.Market, error) {
	out := make([]domain.Market, 0, len(c.Markets))
	for _, e := range c.Markets {
		if e.Name == "" {
			return nil, errors.New("market without name")
		}
		open, err := domain.ParseTimeOfDay(e.Open)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", e.Name, err)
		}
		closeAt, err := domain.ParseTimeOfDay(e.Close)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", e.Name, err)
		}
		out = append(out, domain.Market{
			Name:           e.Name,
			OpenTime:       open,
			CloseTime:      closeAt,
			Enabled:        e.Enabled == nil || *e.Enabled,
			BettingEnabled: e.BettingEnabled == nil || *e.BettingEnabled,
		})
	}
	return out, nil
}

// Registry é o que Apply precisa do store.
type Registry interface {
	UpsertGameType(ctx context.Context, g domain.GameType) error
	GetMarketByName(ctx context.Context, name string) (domain.Market, error)
	CreateMarket(ctx context.Context, m *domain.Market) error
	UpdateMarket(ctx context.Context, m *domain.Market) error
}

type Summary struct {
	GameTypes      int
	MarketsCreated int
	MarketsUpdated int
}

// Apply grava as categorias e cria ou atualiza os mercados pelo nome.
// Pode ser reaplicado sem duplicar nada.
func Apply(ctx context.Context, r Registry, c Catalog) (Summary, error) {
	var sum Summary
	types, err := c.GameTypeList()
	if err != nil {
		return sum, err
	}
	markets, err := c.MarketList()
	if err != nil {
		return sum, err
	}

	for _, g := range types {
		if err := r.UpsertGameType(ctx, g); err != nil {
			return sum, err
		}
		sum.GameTypes++
	}

	for _, m := range markets {
		existing, err := r.GetMarketByName(ctx, m.Name)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			if err := r.CreateMarket(ctx, &m); err != nil {
				return sum, err
			}
			sum.MarketsCreated++
		case err != nil:
			return sum, err
		default:
			m.ID = existing.ID
			if err := r.UpdateMarket(ctx, &m); err != nil {
				return sum, err
			}
			sum.MarketsUpdated++
		}
	}
	return sum, nil
}
