package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/matka-settlement/internal/domain"
)

type memRegistry struct {
	types   map[int64]domain.GameType
	markets map[string]domain.Market
	nextID  int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{types: map[int64]domain.GameType{}, markets: map[string]domain.Market{}}
}

func (r *memRegistry) UpsertGameType(_ context.Context, g domain.GameType) error {
	r.types[g.ID] = g
	return nil
}

func (r *memRegistry) GetMarketByName(_ context.Context, name string) (domain.Market, error) {
	m, ok := r.markets[name]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (r *memRegistry) CreateMarket(_ context.Context, m *domain.Market) error {
	r.nextID++
	m.ID = "m" + string(rune('0'+r.nextID))
	r.markets[m.Name] = *m
	return nil
}

func (r *memRegistry) UpdateMarket(_ context.Context, m *domain.Market) error {
	r.markets[m.Name] = *m
	return nil
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	types, err := c.GameTypeList()
	if err != nil {
		t.Fatalf("GameTypeList() error: %v", err)
	}
	want := map[int64]string{1: "9.5", 2: "95", 3: "150", 4: "300", 5: "1000", 6: "1000", 7: "10000"}
	if len(types) != len(want) {
		t.Fatalf("game types = %d, want %d", len(types), len(want))
	}
	for _, g := range types {
		if !g.PayoutMultiplier.Equal(decimal.RequireFromString(want[g.ID])) {
			t.Errorf("game type %d (%s) multiplier = %s, want %s", g.ID, g.Kind, g.PayoutMultiplier, want[g.ID])
		}
	}

	markets, err := c.MarketList()
	if err != nil {
		t.Fatalf("MarketList() error: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("markets = %d, want 2", len(markets))
	}
	night := markets[1]
	if night.Name != "MILAN NIGHT" || !night.Overnight() || !night.Enabled || !night.BettingEnabled {
		t.Errorf("MILAN NIGHT = %+v, want enabled overnight market", night)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "[[market]]\nname = \"A\"\nopen = \"10:00\"\nclose = \"11:00\"\ncolor = \"red\"\n", "unknown keys"},
		{"bad toml", "[[market]\n", "parse catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestListsRejectBadEntries(t *testing.T) {
	tests := []struct {
		name string
		c    Catalog
	}{
		{"unknown kind", Catalog{GameTypes: []GameTypeEntry{{ID: 1, Kind: "lucky", PayoutMultiplier: "2"}}}},
		{"duplicate id", Catalog{GameTypes: []GameTypeEntry{
			{ID: 1, Kind: "single_digit", PayoutMultiplier: "9"},
			{ID: 1, Kind: "jodi_digit", PayoutMultiplier: "90"},
		}}},
		{"multiplier with three decimals", Catalog{GameTypes: []GameTypeEntry{{ID: 1, Kind: "single_digit", PayoutMultiplier: "9.555"}}}},
		{"zero multiplier", Catalog{GameTypes: []GameTypeEntry{{ID: 1, Kind: "single_digit", PayoutMultiplier: "0"}}}},
		{"market without name", Catalog{Markets: []MarketEntry{{Open: "10:00", Close: "11:00"}}}},
		{"bad time", Catalog{Markets: []MarketEntry{{Name: "A", Open: "25:00", Close: "11:00"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Apply(context.Background(), newMemRegistry(), tt.c); err == nil {
				t.Error("Apply() succeeded, want error")
			}
		})
	}
}

func TestApplyCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	reg := newMemRegistry()

	sum, err := Apply(ctx, reg, Default())
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if sum != (Summary{GameTypes: 7, MarketsCreated: 2}) {
		t.Errorf("first Apply() = %+v", sum)
	}
	id := reg.markets["KALYAN"].ID

	off := false
	c := Catalog{Markets: []MarketEntry{{Name: "KALYAN", Open: "11:00", Close: "23:00", BettingEnabled: &off}}}
	sum, err = Apply(ctx, reg, c)
	if err != nil {
		t.Fatalf("second Apply() error: %v", err)
	}
	if sum != (Summary{MarketsUpdated: 1}) {
		t.Errorf("second Apply() = %+v", sum)
	}
	k := reg.markets["KALYAN"]
	if k.ID != id || k.OpenTime != domain.MustTimeOfDay("11:00") || k.BettingEnabled || !k.Enabled {
		t.Errorf("KALYAN = %+v, want same id, 11:00 open, betting off", k)
	}
}

func TestLoadOrDefault(t *testing.T) {
	c, err := LoadOrDefault("")
	if err != nil || len(c.Markets) != 2 {
		t.Fatalf("LoadOrDefault(\"\") = %d markets, %v", len(c.Markets), err)
	}

	path := filepath.Join(t.TempDir(), "catalog.toml")
	data := "[[market]]\nname = \"TIME BAZAR\"\nopen = \"13:00\"\nclose = \"14:00\"\nenabled = false\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault(file) error: %v", err)
	}
	ms, err := c.MarketList()
	if err != nil || len(ms) != 1 || ms[0].Enabled {
		t.Errorf("markets = %+v, %v, want one disabled TIME BAZAR", ms, err)
	}

	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadOrDefault(missing) succeeded, want error")
	}
}
