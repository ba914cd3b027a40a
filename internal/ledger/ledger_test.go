package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/store"
	"github.com/radieske/matka-settlement/internal/store/storetest"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreditCreatesWallet(t *testing.T) {
	s := storetest.New(t)
	l := New(s, zap.NewNop())
	ctx := context.Background()

	e, err := l.Credit(ctx, Posting{OwnerID: "u1", Amount: dec("950"), Kind: domain.KindWin, ReferenceID: "bid-1"})
	if err != nil {
		t.Fatalf("Credit() error: %v", err)
	}
	if e.Status != domain.EntrySuccess || !e.BalanceAfter.Equal(dec("950")) {
		t.Errorf("entry = %+v, want success with balance_after 950", e)
	}
	w, err := l.Balance(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !w.Balance.Equal(dec("950")) {
		t.Errorf("Balance = %s, want 950", w.Balance)
	}
}

func TestDebitInsufficient(t *testing.T) {
	s := storetest.New(t)
	l := New(s, zap.NewNop())
	ctx := context.Background()
	storetest.Fund(t, s, "u1", 100)

	_, err := l.Debit(ctx, Posting{OwnerID: "u1", Amount: dec("100.01"), Kind: domain.KindWithdraw})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("Debit() error = %v, want ErrInsufficientBalance", err)
	}
	if got := storetest.Balance(t, s, "u1"); !got.Equal(dec("100")) {
		t.Errorf("Balance = %s, want 100 untouched", got)
	}

	e, err := l.Debit(ctx, Posting{OwnerID: "u1", Amount: dec("100"), Kind: domain.KindWithdraw})
	if err != nil {
		t.Fatalf("Debit(exact) error: %v", err)
	}
	if !e.BalanceAfter.IsZero() {
		t.Errorf("BalanceAfter = %s, want 0", e.BalanceAfter)
	}
}

func TestPostingValidation(t *testing.T) {
	s := storetest.New(t)
	l := New(s, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		p    Posting
		fn   func(context.Context, Posting) (domain.LedgerEntry, error)
	}{
		{"no owner", Posting{Amount: dec("1"), Kind: domain.KindDeposit}, l.Credit},
		{"zero amount", Posting{OwnerID: "u1", Amount: decimal.Zero, Kind: domain.KindDeposit}, l.Credit},
		{"negative amount", Posting{OwnerID: "u1", Amount: dec("-5"), Kind: domain.KindDeposit}, l.Credit},
		{"three decimals on credit", Posting{OwnerID: "u1", Amount: dec("10.005"), Kind: domain.KindDeposit}, l.Credit},
		{"three decimals on debit", Posting{OwnerID: "u1", Amount: dec("0.001"), Kind: domain.KindWithdraw}, l.Debit},
		{"debit kind on credit", Posting{OwnerID: "u1", Amount: dec("5"), Kind: domain.KindBid}, l.Credit},
		{"credit kind on debit", Posting{OwnerID: "u1", Amount: dec("5"), Kind: domain.KindWin}, l.Debit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn(ctx, tt.p)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}

	// zeros à direita não contam como casa decimal
	e, err := l.Credit(ctx, Posting{OwnerID: "u1", Amount: dec("10.500"), Kind: domain.KindDeposit})
	if err != nil {
		t.Fatalf("Credit(10.500) error: %v", err)
	}
	if !e.BalanceAfter.Equal(dec("10.5")) {
		t.Errorf("BalanceAfter = %s, want 10.5", e.BalanceAfter)
	}
}

func TestReserveCommitVoid(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()
	storetest.Fund(t, s, "u1", 500)

	var hold domain.LedgerEntry
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		hold, err = Reserve(ctx, tx, Posting{OwnerID: "u1", Amount: dec("200"), Kind: domain.KindWithdraw})
		return err
	})
	if err != nil {
		t.Fatalf("Reserve() error: %v", err)
	}
	if hold.Status != domain.EntryPending {
		t.Fatalf("hold status = %s, want pending", hold.Status)
	}
	if got := storetest.Balance(t, s, "u1"); !got.Equal(dec("300")) {
		t.Errorf("Balance after reserve = %s, want 300", got)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Void(ctx, tx, hold.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Void() error: %v", err)
	}
	if got := storetest.Balance(t, s, "u1"); !got.Equal(dec("500")) {
		t.Errorf("Balance after void = %s, want 500", got)
	}

	// void repetido é idempotente; commit de hold anulado não.
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Void(ctx, tx, hold.ID)
		return err
	})
	if err != nil {
		t.Errorf("second Void() error: %v", err)
	}
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := Commit(ctx, tx, hold.ID)
		return err
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Commit(voided) error = %v, want ErrInvalidState", err)
	}

	var hold2 domain.LedgerEntry
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		if hold2, err = Reserve(ctx, tx, Posting{OwnerID: "u1", Amount: dec("50"), Kind: domain.KindWithdraw}); err != nil {
			return err
		}
		_, err = Commit(ctx, tx, hold2.ID)
		return err
	})
	if err != nil {
		t.Fatalf("Reserve+Commit error: %v", err)
	}
	got, err := s.GetEntry(ctx, hold2.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.EntrySuccess {
		t.Errorf("committed status = %s, want success", got.Status)
	}
	if bal := storetest.Balance(t, s, "u1"); !bal.Equal(dec("450")) {
		t.Errorf("Balance = %s, want 450", bal)
	}
}

func TestAuditConservation(t *testing.T) {
	s := storetest.New(t)
	l := New(s, zap.NewNop())
	ctx := context.Background()
	storetest.Fund(t, s, "u1", 1000)

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := Debit(ctx, tx, Posting{OwnerID: "u1", Amount: dec("300"), Kind: domain.KindBid}); err != nil {
			return err
		}
		if _, err := Credit(ctx, tx, Posting{OwnerID: "u1", Amount: dec("2850"), Kind: domain.KindWin}); err != nil {
			return err
		}
		hold, err := Reserve(ctx, tx, Posting{OwnerID: "u1", Amount: dec("100"), Kind: domain.KindWithdraw})
		if err != nil {
			return err
		}
		_, err = Void(ctx, tx, hold.ID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	rep, err := l.Audit(ctx, "u1")
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if !rep.Consistent {
		t.Errorf("Audit() = %+v, want consistent", rep)
	}
	if !rep.Balance.Equal(dec("3550")) {
		t.Errorf("Balance = %s, want 3550", rep.Balance)
	}
	if rep.Entries != 3 {
		t.Errorf("Entries = %d, want 3 (failed hold excluded)", rep.Entries)
	}

	hist, err := l.History(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 4 {
		t.Errorf("History() = %d entries, want 4", len(hist))
	}
}

func TestCreditAllSortsByOwner(t *testing.T) {
	s := storetest.New(t)
	ctx := context.Background()

	var entries []domain.LedgerEntry
	err := s.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		entries, err = CreditAll(ctx, tx, []Posting{
			{OwnerID: "zed", Amount: dec("10"), Kind: domain.KindWin},
			{OwnerID: "amy", Amount: dec("20"), Kind: domain.KindWin},
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || !entries[0].Amount.Equal(dec("20")) {
		t.Errorf("entries = %+v, want amy first", entries)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := DebitAll(ctx, tx, []Posting{
			{OwnerID: "amy", Amount: dec("5"), Kind: domain.KindReversal},
			{OwnerID: "zed", Amount: dec("50"), Kind: domain.KindReversal},
		})
		return err
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("DebitAll() error = %v, want ErrInsufficientFunds", err)
	}
	if got := storetest.Balance(t, s, "amy"); !got.Equal(dec("20")) {
		t.Errorf("amy balance = %s, want 20 after rollback", got)
	}
}
