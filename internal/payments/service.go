package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// OrderStore is the part of the orders repository a payment touches.
type OrderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Order, error)
}

// BillStore is the part of the bills repository a payment touches.
type BillStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Bill, error)
	Update(ctx context.Context, id uuid.UUID, patch map[string]any) (*models.Bill, error)
}

// TransactionLog appends transaction rows.
type TransactionLog interface {
	Create(ctx context.Context, txn *models.Transaction) (*models.Transaction, error)
}

// Accounts reads accounts and applies balance deltas.
type Accounts interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ApplyDelta(ctx context.Context, account *models.Account, delta decimal.Decimal) (*models.Account, decimal.Decimal, error)
}

// Service records payments against orders and bills.
type Service interface {
	RecordPayment(ctx context.Context, input PaymentInput) (*Outcome, error)
}

// PaymentInput is one payment request. Zero AccountID and PaymentMethod fall
// back to the configured defaults; a nil Date means now.
type PaymentInput struct {
	Kind          enums.EntityKind
	TargetID      uuid.UUID
	Amount        decimal.Decimal
	AccountID     uuid.UUID
	Date          *time.Time
	PaymentMethod enums.PaymentMethod
	Memo          string
	ActorID       uuid.UUID
}

// ServiceParams groups the collaborators of the payment service.
type ServiceParams struct {
	Orders       OrderStore
	Bills        BillStore
	Transactions TransactionLog
	Accounts     Accounts
	Cache        cache.Cache
	Settings     Settings
	Metrics      *metrics.LedgerMetrics
	Logger       *logger.Logger
}

type service struct {
	orders       OrderStore
	bills        BillStore
	transactions TransactionLog
	accounts     Accounts
	cache        cache.Cache
	settings     Settings
	metrics      *metrics.LedgerMetrics
	logg         *logger.Logger
	now          func() time.Time
}

// target is the order or bill as read before the payment, with the write
// that records the payment against it.
type target struct {
	contactID uuid.UUID
	txnType   enums.TransactionType
	category  uuid.UUID
	delta     decimal.Decimal
	patch     map[string]any
	newPaid   decimal.Decimal
	cacheKey  string
	update    func(ctx context.Context) (Entity, error)
}

// NewService builds the payment service. Metrics may be nil.
func NewService(p ServiceParams) (Service, error) {
	if p.Orders == nil {
		return nil, fmt.Errorf("orders store required")
	}
	if p.Bills == nil {
		return nil, fmt.Errorf("bills store required")
	}
	if p.Transactions == nil {
		return nil, fmt.Errorf("transaction log required")
	}
	if p.Accounts == nil {
		return nil, fmt.Errorf("accounts required")
	}
	if p.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := p.Settings.validate(); err != nil {
		return nil, err
	}
	return &service{
		orders:       p.Orders,
		bills:        p.Bills,
		transactions: p.Transactions,
		accounts:     p.Accounts,
		cache:        p.Cache,
		settings:     p.Settings,
		metrics:      p.Metrics,
		logg:         p.Logger,
		now:          time.Now,
	}, nil
}

// RecordPayment inserts the transaction row and then writes the entity and
// the account concurrently. Nothing is compensated or retried: a single
// failed write yields a PARTIAL_WRITE error alongside the Outcome.
func (s *service) RecordPayment(ctx context.Context, input PaymentInput) (*Outcome, error) {
	start := s.now()
	ctx = s.logg.WithTarget(ctx, input.Kind.String(), input.TargetID.String())

	outcome, err := s.record(ctx, input)
	s.metrics.ObservePayment(input.Kind.String(), outcomeLabel(err), s.now().Sub(start))
	return outcome, err
}

func (s *service) record(ctx context.Context, input PaymentInput) (*Outcome, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment target must be order or bill")
	}
	if input.TargetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment target id required")
	}
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 0.01")
	}
	if input.PaymentMethod != "" && !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	accountID := input.AccountID
	if accountID == uuid.Nil {
		accountID = s.settings.DefaultAccountID
	}
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	at := s.now().UTC()
	date := at
	if input.Date != nil {
		date = input.Date.UTC()
	}
	entry := types.HistoryEntry{Note: strings.TrimSpace(input.Memo), ActorID: input.ActorID, At: at}

	tgt, err := s.loadTarget(ctx, input.Kind, input.TargetID, amount, entry)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	method := input.PaymentMethod
	if method == "" {
		method = s.settings.DefaultPaymentMethod
	}

	// Issued writes must not be aborted by the caller going away.
	ctx = context.WithoutCancel(ctx)
	ctx = s.logg.WithField(ctx, "account_id", account.ID.String())
	ctx = s.logg.WithAmount(ctx, "amount", amount)

	outcome := &Outcome{Kind: input.Kind, TargetID: input.TargetID, Amount: amount, NewPaid: tgt.newPaid}

	kind := input.Kind
	targetID := input.TargetID
	category := tgt.category
	contact := tgt.contactID
	txn, err := s.transactions.Create(ctx, &models.Transaction{
		Date:          date,
		Type:          tgt.txnType,
		CategoryID:    &category,
		AccountID:     account.ID,
		Amount:        amount,
		ReferenceID:   &targetID,
		ReferenceKind: &kind,
		ContactID:     &contact,
		PaymentMethod: method,
		Memo:          entry.Note,
		CreatedBy:     input.ActorID,
	})
	if err != nil {
		outcome.Transaction = failed[models.Transaction](err)
		outcome.warn(types.WarningTransactionLogFailure, StepTransaction, "transaction row was not written")
		s.metrics.IncTransactionLogFailure(kind.String())
		s.logg.Error(s.logg.WithField(ctx, "step", StepTransaction), "transaction log write failed, continuing", err)
	} else {
		outcome.Transaction = succeeded(txn)
	}

	var g errgroup.Group
	g.Go(func() error {
		entity, err := tgt.update(ctx)
		if err != nil {
			outcome.Entity = failed[Entity](err)
			s.invalidate(ctx, tgt.cacheKey)
			return nil
		}
		outcome.Entity = succeeded(&entity)
		return nil
	})
	g.Go(func() error {
		updated, written, err := s.accounts.ApplyDelta(ctx, account, tgt.delta)
		outcome.NewBalance = written
		if err != nil {
			outcome.Account = failed[models.Account](err)
			return nil
		}
		outcome.Account = succeeded(updated)
		return nil
	})
	_ = g.Wait()

	s.checkStale(ctx, outcome)
	return outcome, s.result(ctx, outcome)
}

// loadTarget reads the entity through the cache and plans its payment write.
func (s *service) loadTarget(ctx context.Context, kind enums.EntityKind, id uuid.UUID, amount decimal.Decimal, entry types.HistoryEntry) (*target, error) {
	switch kind {
	case enums.EntityKindOrder:
		key := cache.OrderKey(id)
		order, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Order, error) {
			return s.orders.Get(ctx, id)
		})
		if err != nil {
			return nil, orders.MapLoadError(err)
		}
		patch, newPaid := orders.ApplyPayment(*order, amount, entry)
		return &target{
			contactID: order.CustomerID,
			txnType:   enums.TransactionTypeIncome,
			category:  s.settings.SaleCategoryID,
			delta:     amount,
			patch:     patch,
			newPaid:   newPaid,
			cacheKey:  key,
			update: func(ctx context.Context) (Entity, error) {
				updated, err := s.orders.Update(ctx, id, patch)
				if err != nil {
					return Entity{}, mapWriteError(err, "order")
				}
				s.patch(ctx, key, updated)
				return Entity{Kind: kind, Order: updated}, nil
			},
		}, nil
	default:
		key := cache.BillKey(id)
		bill, err := cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (*models.Bill, error) {
			return s.bills.Get(ctx, id)
		})
		if err != nil {
			return nil, bills.MapLoadError(err)
		}
		plan := bills.ApplyPayment(*bill, amount, entry)
		return &target{
			contactID: bill.VendorID,
			txnType:   enums.TransactionTypeExpense,
			category:  s.settings.SettlementCategoryID,
			delta:     amount.Neg(),
			patch:     plan.Patch,
			newPaid:   plan.NewPaid,
			cacheKey:  key,
			update: func(ctx context.Context) (Entity, error) {
				updated, err := s.bills.Update(ctx, id, plan.Patch)
				if err != nil {
					return Entity{}, mapWriteError(err, "bill")
				}
				s.patch(ctx, key, updated)
				return Entity{Kind: kind, Bill: updated}, nil
			},
		}, nil
	}
}

// checkStale compares what each update wrote with the row read back.
func (s *service) checkStale(ctx context.Context, outcome *Outcome) {
	if outcome.Entity.OK() {
		got := outcome.Entity.Value.PaidAmount()
		if !got.Equal(outcome.NewPaid) {
			msg := fmt.Sprintf("wrote paid amount %s, read back %s", outcome.NewPaid, got)
			outcome.warn(types.WarningStaleRead, StepEntity, msg)
			s.metrics.IncStaleRead(outcome.Kind.String())
			s.logg.Warn(s.logg.WithField(ctx, "step", StepEntity), msg)
		}
	}
	if outcome.Account.OK() {
		got := outcome.Account.Value.CurrentBalance
		if !got.Equal(outcome.NewBalance) {
			msg := fmt.Sprintf("wrote balance %s, read back %s", outcome.NewBalance, got)
			outcome.warn(types.WarningStaleRead, StepAccount, msg)
			s.metrics.IncStaleRead("account")
			s.logg.Warn(s.logg.WithField(ctx, "step", StepAccount), msg)
		}
	}
}

// result maps the two concurrent writes to the returned error.
func (s *service) result(ctx context.Context, outcome *Outcome) error {
	failedSteps, succeededSteps := outcome.stepSummary()
	details := map[string]any{"failed": failedSteps, "succeeded": succeededSteps, "new_paid": outcome.NewPaid}

	switch {
	case outcome.Entity.OK() && outcome.Account.OK():
		s.logg.Info(ctx, "payment recorded")
		return nil
	case outcome.Entity.OK() || outcome.Account.OK():
		var cause error
		if !outcome.Entity.OK() {
			cause = fmt.Errorf("%s: %w", StepEntity, outcome.Entity.Err)
		} else {
			cause = fmt.Errorf("%s: %w", StepAccount, outcome.Account.Err)
		}
		s.logg.Error(s.logg.WithField(ctx, "step", strings.Join(failedSteps, ",")), "payment partially recorded", cause)
		return pkgerrors.Wrap(pkgerrors.CodePartialWrite, cause, "payment was only partially recorded").WithDetails(details)
	default:
		combined := multierr.Combine(
			fmt.Errorf("%s: %w", StepEntity, outcome.Entity.Err),
			fmt.Errorf("%s: %w", StepAccount, outcome.Account.Err),
		)
		if outcome.Transaction.Err != nil {
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", StepTransaction, outcome.Transaction.Err))
		}
		s.logg.Error(ctx, "payment writes failed", combined)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, combined, "payment could not be recorded").WithDetails(details)
	}
}

func (s *service) patch(ctx context.Context, key string, value any) {
	if err := s.cache.Patch(ctx, key, value); err != nil {
		s.logg.Warn(ctx, "cache patch failed for "+key+": "+err.Error())
	}
}

func (s *service) invalidate(ctx context.Context, key string) {
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.logg.Warn(ctx, "cache invalidate failed for "+key+": "+err.Error())
	}
}

func mapWriteError(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update "+entity)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsCode(err, pkgerrors.CodePartialWrite):
		return metrics.OutcomePartialWrite
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation), pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
