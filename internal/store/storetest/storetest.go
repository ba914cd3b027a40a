// Package storetest abre um Store SQLite descartável, migrado e com o
// catálogo padrão aplicado, para os testes dos pacotes de serviço.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/radieske/matka-settlement/internal/catalog"
	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/shared/db"
	"github.com/radieske/matka-settlement/internal/store"
)

func New(t testing.TB) *store.Store {
	t.Helper()
	conn, err := db.ConnectSQLite(filepath.Join(t.TempDir(), "matka.db"))
	if err != nil {
		t.Fatalf("ConnectSQLite() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	s := store.NewSQLite(conn)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	if _, err := catalog.Apply(ctx, s, catalog.Default()); err != nil {
		t.Fatalf("catalog.Apply() error: %v", err)
	}
	return s
}

// Market cria um mercado habilitado com os horários dados ("HH:MM").
func Market(t testing.TB, s *store.Store, name, open, close string) domain.Market {
	t.Helper()
	m := domain.Market{
		Name:           name,
		OpenTime:       domain.MustTimeOfDay(open),
		CloseTime:      domain.MustTimeOfDay(close),
		Enabled:        true,
		BettingEnabled: true,
	}
	if err := s.CreateMarket(context.Background(), &m); err != nil {
		t.Fatalf("CreateMarket(%s) error: %v", name, err)
	}
	return m
}

// Fund credita um depósito direto, sem passar pelo fluxo de aprovação.
func Fund(t testing.TB, s *store.Store, owner string, amount int64) {
	t.Helper()
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		w, err := tx.LockWallet(ctx, owner, true)
		if err != nil {
			return err
		}
		bal := w.Balance.Add(decimal.NewFromInt(amount))
		if err := tx.SetBalance(ctx, w.ID, bal); err != nil {
			return err
		}
		return tx.InsertEntry(ctx, &domain.LedgerEntry{
			WalletID:     w.ID,
			Amount:       decimal.NewFromInt(amount),
			Kind:         domain.KindDeposit,
			Status:       domain.EntrySuccess,
			Description:  "test funding",
			BalanceAfter: bal,
		})
	})
	if err != nil {
		t.Fatalf("Fund(%s) error: %v", owner, err)
	}
}

// Balance lê o saldo atual (zero se a carteira não existir).
func Balance(t testing.TB, s *store.Store, owner string) decimal.Decimal {
	t.Helper()
	w, err := s.EnsureWallet(context.Background(), owner)
	if err != nil {
		t.Fatalf("EnsureWallet(%s) error: %v", owner, err)
	}
	return w.Balance
}
