// Package funding cuida da entrada e saída de dinheiro: depósitos aprovados
// pelo admin (com bônus de indicação) e saques como reserva no ledger.
package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/matka-settlement/internal/domain"
	"github.com/radieske/matka-settlement/internal/ledger"
	"github.com/radieske/matka-settlement/internal/store"
)

// Rules são os parâmetros do bônus de indicação.
type Rules struct {
	ReferralMinDeposit   decimal.Decimal
	ReferralBonusPercent decimal.Decimal
}

type Service struct {
	store *store.Store
	log   *zap.Logger
	rules Rules
}

func New(s *store.Store, log *zap.Logger, rules Rules) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, log: log, rules: rules}
}

// Bonus calcula o bônus do indicador para um depósito; zero abaixo do mínimo.
func (r Rules) Bonus(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(r.ReferralMinDeposit) || !r.ReferralBonusPercent.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(r.ReferralBonusPercent).Div(decimal.NewFromInt(100)).Round(2)
}

// ─── Depósitos ──────────────────────────────────────────────────────────────

func (s *Service) RequestDeposit(ctx context.Context, owner string, amount decimal.Decimal, reference string) (domain.Deposit, error) {
	if strings.TrimSpace(owner) == "" {
		return domain.Deposit{}, domain.Invalid("owner_id", "required")
	}
	if err := domain.ValidateAmount("amount", amount); err != nil {
		return domain.Deposit{}, err
	}
	d := domain.Deposit{OwnerID: owner, Amount: amount, Reference: reference}
	if err := s.store.InsertDeposit(ctx, &d); err != nil {
		return domain.Deposit{}, err
	}
	s.log.Info("deposit requested",
		zap.String("deposit_id", d.ID),
		zap.String("owner_id", owner),
		zap.String("amount", amount.String()))
	return d, nil
}

// Approval é o efeito de aprovar um depósito.
type Approval struct {
	Deposit domain.Deposit      `json:"deposit"`
	Entry   domain.LedgerEntry  `json:"entry"`
	Bonus   *domain.LedgerEntry `json:"bonus,omitempty"`
}

// ApproveDeposit credita o depósito e, se ele qualificar, paga o bônus ao
// indicador na mesma transação. O bônus sai uma vez por indicado.
func (s *Service) ApproveDeposit(ctx context.Context, id string) (Approval, error) {
	var out Approval
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		d, err := tx.LockDeposit(ctx, id)
		if err != nil {
			return err
		}
		if d.Status != domain.DepositPending {
			return fmt.Errorf("deposit %s already %s: %w", id, d.Status, domain.ErrInvalidState)
		}
		e, err := ledger.Credit(ctx, tx, ledger.Posting{
			OwnerID:     d.OwnerID,
			Amount:      d.Amount,
			Kind:        domain.KindDeposit,
			Description: "deposit " + d.Reference,
			ReferenceID: d.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.DecideDeposit(ctx, &d, domain.DepositApproved, e.ID); err != nil {
			return err
		}
		out.Deposit, out.Entry = d, e

		bonus, err := s.referralBonus(ctx, tx, d)
		if err != nil {
			return err
		}
		out.Bonus = bonus
		return nil
	})
	if err != nil {
		return Approval{}, err
	}

	fields := []zap.Field{
		zap.String("deposit_id", id),
		zap.String("owner_id", out.Deposit.OwnerID),
		zap.String("amount", out.Deposit.Amount.String()),
	}
	if out.Bonus != nil {
		fields = append(fields, zap.String("referral_bonus", out.Bonus.Amount.String()))
	}
	s.log.Info("deposit approved", fields...)
	return out, nil
}

func (s *Service) referralBonus(ctx context.Context, tx *store.Tx, d domain.Deposit) (*domain.LedgerEntry, error) {
	amount := s.rules.Bonus(d.Amount)
	if amount.IsZero() {
		return nil, nil
	}
	ref, err := tx.GetReferral(ctx, d.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	claimed, err := tx.ClaimReferral(ctx, d.OwnerID, d.ID)
	if err != nil || !claimed {
		return nil, err
	}
	e, err := ledger.Credit(ctx, tx, ledger.Posting{
		OwnerID:     ref.ReferrerID,
		Amount:      amount,
		Kind:        domain.KindBonus,
		Description: "referral bonus " + d.OwnerID,
		ReferenceID: d.ID,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.SetReferralBonus(ctx, d.OwnerID, e.ID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) RejectDeposit(ctx context.Context, id string) (domain.Deposit, error) {
	var out domain.Deposit
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		d, err := tx.LockDeposit(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DecideDeposit(ctx, &d, domain.DepositRejected, ""); err != nil {
			return err
		}
		out = d
		return nil
	})
	if err != nil {
		return domain.Deposit{}, err
	}
	s.log.Info("deposit rejected", zap.String("deposit_id", id), zap.String("owner_id", out.OwnerID))
	return out, nil
}

func (s *Service) Deposits(ctx context.Context, owner string, status domain.DepositStatus) ([]domain.Deposit, error) {
	return s.store.ListDeposits(ctx, owner, status)
}

// RegisterReferral liga o indicado ao indicador. Cada indicado tem um só.
func (s *Service) RegisterReferral(ctx context.Context, referred, referrer string) error {
	referred, referrer = strings.TrimSpace(referred), strings.TrimSpace(referrer)
	if referred == "" || referrer == "" {
		return domain.Invalid("referral", "referred_id and referrer_id are required")
	}
	if referred == referrer {
		return domain.Invalid("referrer_id", "cannot refer yourself")
	}
	ok, err := s.store.InsertReferral(ctx, referred, referrer)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s already has a referrer: %w", referred, domain.ErrInvalidState)
	}
	s.log.Info("referral registered", zap.String("referred_id", referred), zap.String("referrer_id", referrer))
	return nil
}

// ─── Saques ─────────────────────────────────────────────────────────────────

// RequestWithdrawal reserva o valor: o saldo cai já e o lançamento fica
// pending até o admin decidir.
func (s *Service) RequestWithdrawal(ctx context.Context, owner string, amount decimal.Decimal) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		e, err = ledger.Reserve(ctx, tx, ledger.Posting{
			OwnerID:     owner,
			Amount:      amount,
			Kind:        domain.KindWithdraw,
			Description: "withdrawal request",
		})
		return err
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.log.Info("withdrawal requested",
		zap.String("entry_id", e.ID),
		zap.String("owner_id", owner),
		zap.String("amount", amount.String()))
	return e, nil
}

func (s *Service) ApproveWithdrawal(ctx context.Context, entryID string) (domain.LedgerEntry, error) {
	return s.decideWithdrawal(ctx, entryID, "approved", ledger.Commit)
}

// RejectWithdrawal devolve o valor reservado ao saldo.
func (s *Service) RejectWithdrawal(ctx context.Context, entryID string) (domain.LedgerEntry, error) {
	return s.decideWithdrawal(ctx, entryID, "rejected", ledger.Void)
}

func (s *Service) decideWithdrawal(ctx context.Context, entryID, outcome string,
	fn func(context.Context, *store.Tx, string) (domain.LedgerEntry, error)) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		cur, err := tx.LockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if cur.Kind != domain.KindWithdraw {
			return fmt.Errorf("entry %s is %s, not a withdrawal: %w", entryID, cur.Kind, domain.ErrInvalidState)
		}
		e, err = fn(ctx, tx, entryID)
		return err
	})
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.log.Info("withdrawal "+outcome, zap.String("entry_id", entryID), zap.String("amount", e.Amount.String()))
	return e, nil
}

func (s *Service) PendingWithdrawals(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.store.PendingEntries(ctx, domain.KindWithdraw)
}
