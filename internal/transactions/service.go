package transactions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/accounts"
	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/pagination"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Leg names used in partial write details.
const (
	StepTransaction = "transaction"
	StepSource      = "source_account"
	StepDestination = "destination_account"
)

// Service records manual money movements and lists the transaction log.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*RecordResult, error)
	List(ctx context.Context, input ListInput) (*Page, error)
}

// RecordInput is a manual income, expense or transfer.
type RecordInput struct {
	Date          *time.Time
	Type          enums.TransactionType
	CategoryID    *uuid.UUID
	AccountID     uuid.UUID
	ToAccountID   *uuid.UUID
	Amount        decimal.Decimal
	ContactID     *uuid.UUID
	PaymentMethod enums.PaymentMethod
	Memo          string
	ActorID       uuid.UUID
}

// RecordResult carries the inserted row and every account leg that was written.
type RecordResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Accounts    []*models.Account   `json:"accounts"`
	Warnings    []types.Warning     `json:"warnings,omitempty"`
}

// ListInput filters and pages the transaction log.
type ListInput struct {
	From      *time.Time
	To        *time.Time
	Type      *enums.TransactionType
	AccountID *uuid.UUID
	Page      pagination.Params
}

// Page is one page of transactions, newest first.
type Page struct {
	Items      []models.Transaction `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type leg struct {
	step    string
	account *models.Account
	delta   decimal.Decimal
}

type service struct {
	repo          Repository
	accounts      accounts.Service
	defaultMethod enums.PaymentMethod
	metrics       *metrics.LedgerMetrics
	logg          *logger.Logger
	now           func() time.Time
}

// NewService builds the manual transaction service. m may be nil.
func NewService(repo Repository, accountSvc accounts.Service, defaultMethod enums.PaymentMethod, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	if accountSvc == nil {
		return nil, fmt.Errorf("accounts service required")
	}
	if !defaultMethod.IsValid() {
		return nil, fmt.Errorf("invalid default payment method %q", defaultMethod)
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:          repo,
		accounts:      accountSvc,
		defaultMethod: defaultMethod,
		metrics:       m,
		logg:          logg,
		now:           time.Now,
	}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*RecordResult, error) {
	legs, err := s.plan(ctx, input)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	if method == "" {
		method = s.defaultMethod
	}
	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}

	txn := &models.Transaction{
		Date:          date,
		Type:          input.Type,
		CategoryID:    input.CategoryID,
		AccountID:     input.AccountID,
		ToAccountID:   input.ToAccountID,
		Amount:        input.Amount.Round(2),
		ContactID:     input.ContactID,
		PaymentMethod: method,
		Memo:          strings.TrimSpace(input.Memo),
		CreatedBy:     input.ActorID,
	}

	// Issued writes must not be aborted by the caller going away.
	ctx = context.WithoutCancel(ctx)
	ctx = s.logg.WithAmount(s.logg.WithField(ctx, "transaction_type", input.Type.String()), "amount", txn.Amount)

	created, err := s.repo.Create(ctx, txn)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction")
	}

	result := &RecordResult{Transaction: created, Accounts: make([]*models.Account, len(legs))}
	legErrs := make([]error, len(legs))
	var mu sync.Mutex

	var g errgroup.Group
	for i, l := range legs {
		g.Go(func() error {
			updated, written, err := s.accounts.ApplyDelta(ctx, l.account, l.delta)
			if err != nil {
				legErrs[i] = fmt.Errorf("%s: %w", l.step, err)
				return nil
			}
			result.Accounts[i] = updated
			if !updated.CurrentBalance.Equal(written) {
				s.metrics.IncStaleRead("account")
				mu.Lock()
				result.Warnings = append(result.Warnings, types.Warning{
					Code:    types.WarningStaleRead,
					Step:    l.step,
					Message: fmt.Sprintf("wrote balance %s, read back %s", written, updated.CurrentBalance),
				})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	succeeded := []string{StepTransaction}
	var failed []string
	var combined error
	for i, l := range legs {
		if legErrs[i] != nil {
			failed = append(failed, l.step)
			combined = multierr.Append(combined, legErrs[i])
			continue
		}
		succeeded = append(succeeded, l.step)
	}
	if combined != nil {
		s.logg.Error(ctx, "transaction balance legs failed", combined)
		return result, pkgerrors.Wrap(pkgerrors.CodePartialWrite, combined, "transaction recorded but balances were not fully applied").
			WithDetails(map[string]any{"failed": failed, "succeeded": succeeded})
	}

	s.logg.Info(ctx, "transaction recorded")
	return result, nil
}

// plan validates the input and resolves the accounts each leg moves.
func (s *service) plan(ctx context.Context, input RecordInput) ([]leg, error) {
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 0.01")
	}
	if input.PaymentMethod != "" && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	source, err := s.accounts.Get(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	switch input.Type {
	case enums.TransactionTypeIncome, enums.TransactionTypeExpense:
		if input.ToAccountID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "only transfers have a destination account")
		}
		delta := amount
		if input.Type == enums.TransactionTypeExpense {
			delta = amount.Neg()
		}
		return []leg{{step: StepSource, account: source, delta: delta}}, nil
	default:
		if input.ToAccountID == nil || *input.ToAccountID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer requires a destination account")
		}
		if *input.ToAccountID == input.AccountID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer accounts must differ")
		}
		dest, err := s.accounts.Get(ctx, *input.ToAccountID)
		if err != nil {
			return nil, err
		}
		return []leg{
			{step: StepSource, account: source, delta: amount.Neg()},
			{step: StepDestination, account: dest, delta: amount},
		}, nil
	}
}

func (s *service) List(ctx context.Context, input ListInput) (*Page, error) {
	after, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if input.Type != nil && !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	limit := pagination.NormalizeLimit(input.Page.Limit)

	rows, err := s.repo.List(ctx, ListFilter{
		Dates:     repo.DateRange{From: input.From, To: input.To},
		Type:      input.Type,
		AccountID: input.AccountID,
		Limit:     limit,
		After:     after,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	items, next := pagination.Trim(rows, limit, func(t models.Transaction) pagination.Cursor {
		return pagination.Cursor{Date: t.Date, ID: t.ID}
	})
	if items == nil {
		items = []models.Transaction{}
	}
	return &Page{Items: items, NextCursor: next}, nil
}
