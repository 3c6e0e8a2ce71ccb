package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// OrderLister lists orders for a report window.
type OrderLister interface {
	List(ctx context.Context, filter orders.ListFilter) ([]models.Order, error)
}

// BillLister lists bills for a report window.
type BillLister interface {
	List(ctx context.Context, filter bills.ListFilter) ([]models.Bill, error)
}

// TransactionLister lists transactions for a report window.
type TransactionLister interface {
	List(ctx context.Context, filter transactions.ListFilter) ([]models.Transaction, error)
}

// Service loads the in-range read set and aggregates it.
type Service interface {
	Report(ctx context.Context, input ReportInput) (*Report, error)
}

// ReportInput selects a report.
type ReportInput struct {
	Kind  enums.ReportKind
	Range RangeSpec
	Year  int
}

// Report is a computed report.
type Report struct {
	Kind   enums.ReportKind `json:"kind"`
	Range  enums.RangeKind  `json:"range"`
	Window Window           `json:"window"`
	Year   int              `json:"year,omitempty"`
	Rows   []Row            `json:"rows"`
}

type service struct {
	orders       OrderLister
	bills        BillLister
	transactions TransactionLister
	opts         Options
	logg         *logger.Logger
	now          func() time.Time
}

// NewService builds the report service.
func NewService(o OrderLister, b BillLister, t TransactionLister, opts Options, logg *logger.Logger) (Service, error) {
	if o == nil || b == nil || t == nil {
		return nil, fmt.Errorf("order, bill and transaction listers required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{orders: o, bills: b, transactions: t, opts: opts, logg: logg, now: time.Now}, nil
}

func (s *service) Report(ctx context.Context, input ReportInput) (*Report, error) {
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown report "+input.Kind.String())
	}
	if input.Range.Kind == "" {
		input.Range.Kind = enums.RangeKindAllTime
	}
	now := s.now()
	window, err := input.Range.Resolve(now, s.opts.location())
	if err != nil {
		return nil, err
	}

	opts := s.opts
	if input.Kind == enums.ReportKindCashFlow {
		opts.Year = input.Year
		if opts.Year == 0 {
			opts.Year = now.In(opts.location()).Year()
		}
	}

	data, err := s.load(ctx, window)
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "report", input.Kind.String()), "load report read set", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report data")
	}

	rows, err := Aggregate(input.Kind, window, data, opts)
	if err != nil {
		return nil, err
	}
	return &Report{Kind: input.Kind, Range: input.Range.Kind, Window: window, Year: opts.Year, Rows: rows}, nil
}

// load reads the three entity sets concurrently.
func (s *service) load(ctx context.Context, window Window) (Dataset, error) {
	dates := window.DateRange()
	var data Dataset

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.orders.List(gctx, orders.ListFilter{Dates: dates})
		data.Orders = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.bills.List(gctx, bills.ListFilter{Dates: dates})
		data.Bills = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.transactions.List(gctx, transactions.ListFilter{Dates: dates})
		data.Transactions = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	return data, nil
}
