package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianbooks/meridian/internal/audit"
	"github.com/meridianbooks/meridian/internal/ledger/shared"
)

// AuditPort records registry changes.
type AuditPort interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Service exposes the chart of accounts registry.
type Service struct {
	repo      Repository
	auditPort AuditPort
}

// NewService constructs an account Service.
func NewService(repo Repository, auditPort AuditPort) *Service {
	return &Service{repo: repo, auditPort: auditPort}
}

func (s *Service) recordChange(ctx context.Context, action audit.Action, account Account, actor string) {
	if s.auditPort == nil {
		return
	}
	_ = s.auditPort.Record(ctx, audit.Entry{
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(account.ID, 10),
		Actor:    actor,
		Payload: audit.AccountPayload{
			AccountID: account.ID,
			Code:      account.Code,
			Name:      account.Name,
		},
	})
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns all active accounts ordered by code.
func (s *Service) ListActive(ctx context.Context) ([]Account, error) {
	return s.repo.ListActive(ctx)
}

// Create registers a new account. The normal balance defaults from the
// account type when not supplied.
func (s *Service) Create(ctx context.Context, in CreateAccountInput, actor string) (Account, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" || in.Name == "" {
		return Account{}, errors.New("accounts: code and name required")
	}
	switch in.Type {
	case TypeAsset, TypeLiability, TypeEquity, TypeRevenue, TypeExpense:
	default:
		return Account{}, fmt.Errorf("accounts: unknown type %q", in.Type)
	}
	if in.NormalBalance == "" {
		in.NormalBalance = DefaultNormalBalance(in.Type)
	}
	if in.ParentID != nil {
		if _, err := s.repo.Get(ctx, *in.ParentID); err != nil {
			return Account{}, fmt.Errorf("accounts: parent: %w", err)
		}
	}
	account, err := s.repo.Insert(ctx, in)
	if err != nil {
		return Account{}, err
	}
	s.recordChange(ctx, audit.ActionAccountCreated, account, actor)
	return account, nil
}

// Deactivate retires an account. Posted history stays; new postings are
// rejected by EnsurePostable.
func (s *Service) Deactivate(ctx context.Context, id int64, actor string) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !account.Active {
		return account, nil
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return Account{}, err
	}
	account.Active = false
	s.recordChange(ctx, audit.ActionAccountDeactivate, account, actor)
	return account, nil
}

// EnsurePostable verifies the account exists, is active, and is a leaf.
func (s *Service) EnsurePostable(ctx context.Context, id int64) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if !account.Active {
		return Account{}, shared.ErrAccountInactive
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if hasChildren {
		return Account{}, shared.ErrNonLeafAccount
	}
	return account, nil
}

// BalanceAsOf returns the signed balance of one account: the sum of its
// unvoided entries dated on or before asOf, oriented by its normal side.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, err := s.repo.SumSides(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return Orient(account.NormalBalance, debit, credit), nil
}

// BalancesAsOf returns signed balances for every active account. Accounts
// with no entries report zero.
func (s *Service) BalancesAsOf(ctx context.Context, asOf time.Time) ([]Balance, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	sums, err := s.repo.SumSidesAll(ctx, asOf)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(active))
	for _, account := range active {
		sides := sums[account.ID]
		out = append(out, Balance{
			AccountID: account.ID,
			Code:      account.Code,
			Name:      account.Name,
			Amount:    Orient(account.NormalBalance, sides[0], sides[1]),
		})
	}
	return out, nil
}
