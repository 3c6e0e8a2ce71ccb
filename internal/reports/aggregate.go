package reports

import (
	"sort"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Row value keys.
const (
	ValueIncome      = "income"
	ValueExpense     = "expense"
	ValueProfit      = "profit"
	ValueAmount      = "amount"
	ValueOutstanding = "outstanding"
	ValueCount       = "count"
)

// Row keys for fixed report lines.
const (
	KeyPurchases         = "purchases"
	KeyUncategorized     = "uncategorized"
	KeyGrossSales        = "gross_sales"
	KeyCostOfGoodsSold   = "cost_of_goods_sold"
	KeyGrossProfit       = "gross_profit"
	KeyOperatingExpenses = "operating_expenses"
	KeyNetProfit         = "net_profit"
	KeyReceivables       = "receivables"
	KeyPayables          = "payables"
)

// Row is one line of a report.
type Row struct {
	Key    string                     `json:"key"`
	Label  string                     `json:"label"`
	Values map[string]decimal.Decimal `json:"values"`
}

// Dataset is the read set a report folds over. It may hold rows outside the
// window; Aggregate filters them.
type Dataset struct {
	Orders       []models.Order
	Bills        []models.Bill
	Transactions []models.Transaction
}

// Options carry the ledger constants and calendar a report is computed with.
type Options struct {
	SettlementCategoryID uuid.UUID
	Location             *time.Location
	// Year selects the cash flow year. Cash flow requires it.
	Year int
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.UTC
	}
	return o.Location
}

// Aggregate computes the report kind over the in-range part of data. Every
// call folds the full set; nothing is maintained incrementally.
func Aggregate(kind enums.ReportKind, window Window, data Dataset, opts Options) ([]Row, error) {
	in := filter(window, data)
	switch kind {
	case enums.ReportKindCashFlow:
		if opts.Year <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash flow year required")
		}
		return cashFlow(in, opts), nil
	case enums.ReportKindExpenseByCategory:
		return expenseByCategory(in, opts), nil
	case enums.ReportKindProfitAndLoss:
		return profitAndLoss(in, opts), nil
	case enums.ReportKindReceivables:
		return []Row{receivables(in)}, nil
	case enums.ReportKindPayables:
		return []Row{payables(in)}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown report "+kind.String())
	}
}

func filter(window Window, data Dataset) Dataset {
	var out Dataset
	for _, o := range data.Orders {
		if window.Contains(o.Date) {
			out.Orders = append(out.Orders, o)
		}
	}
	for _, b := range data.Bills {
		if window.Contains(b.Date) {
			out.Bills = append(out.Bills, b)
		}
	}
	for _, t := range data.Transactions {
		if window.Contains(t.Date) {
			out.Transactions = append(out.Transactions, t)
		}
	}
	return out
}

// operatingExpense reports whether t counts as a non-purchase expense.
func operatingExpense(t models.Transaction, settlement uuid.UUID) bool {
	return t.Type == enums.TransactionTypeExpense && !t.InCategory(settlement)
}

func cashFlow(in Dataset, opts Options) []Row {
	loc := opts.location()
	year := opts.Year

	var income, expense [12]decimal.Decimal
	bucket := func(t time.Time) (int, bool) {
		t = t.In(loc)
		return int(t.Month()) - 1, t.Year() == year
	}

	for _, o := range in.Orders {
		if m, ok := bucket(o.Date); ok {
			income[m] = income[m].Add(o.Total)
		}
	}
	for _, b := range in.Bills {
		if m, ok := bucket(b.Date); ok {
			expense[m] = expense[m].Add(b.Total)
		}
	}
	for _, t := range in.Transactions {
		if !operatingExpense(t, opts.SettlementCategoryID) {
			continue
		}
		if m, ok := bucket(t.Date); ok {
			expense[m] = expense[m].Add(t.Amount)
		}
	}

	rows := make([]Row, 0, 12)
	for m := 0; m < 12; m++ {
		month := time.Date(year, time.Month(m+1), 1, 0, 0, 0, 0, loc)
		rows = append(rows, Row{
			Key:   month.Format("2006-01"),
			Label: month.Format("Jan"),
			Values: map[string]decimal.Decimal{
				ValueIncome:  income[m],
				ValueExpense: expense[m],
				ValueProfit:  income[m].Sub(expense[m]),
			},
		})
	}
	return rows
}

func expenseByCategory(in Dataset, opts Options) []Row {
	purchases := decimal.Zero
	for _, b := range in.Bills {
		purchases = purchases.Add(b.Total)
	}
	rows := []Row{{Key: KeyPurchases, Label: "Purchases", Values: amount(purchases)}}

	byCategory := map[string]decimal.Decimal{}
	for _, t := range in.Transactions {
		if !operatingExpense(t, opts.SettlementCategoryID) {
			continue
		}
		key := KeyUncategorized
		if t.CategoryID != nil {
			key = t.CategoryID.String()
		}
		byCategory[key] = byCategory[key].Add(t.Amount)
	}

	keys := make([]string, 0, len(byCategory))
	for k := range byCategory {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rows = append(rows, Row{Key: k, Label: k, Values: amount(byCategory[k])})
	}
	return rows
}

func profitAndLoss(in Dataset, opts Options) []Row {
	sales, cogs, opex := decimal.Zero, decimal.Zero, decimal.Zero
	for _, o := range in.Orders {
		if o.Status == enums.OrderStatusCompleted {
			sales = sales.Add(o.Total)
		}
	}
	for _, b := range in.Bills {
		cogs = cogs.Add(b.Total)
	}
	for _, t := range in.Transactions {
		if operatingExpense(t, opts.SettlementCategoryID) {
			opex = opex.Add(t.Amount)
		}
	}
	gross := sales.Sub(cogs)

	return []Row{
		{Key: KeyGrossSales, Label: "Gross sales", Values: amount(sales)},
		{Key: KeyCostOfGoodsSold, Label: "Cost of goods sold", Values: amount(cogs)},
		{Key: KeyGrossProfit, Label: "Gross profit", Values: amount(gross)},
		{Key: KeyOperatingExpenses, Label: "Operating expenses", Values: amount(opex)},
		{Key: KeyNetProfit, Label: "Net profit", Values: amount(gross.Sub(opex))},
	}
}

func receivables(in Dataset) Row {
	sum := decimal.Zero
	for _, o := range in.Orders {
		sum = sum.Add(o.Outstanding())
	}
	return outstandingRow(KeyReceivables, "Receivables", sum, len(in.Orders))
}

func payables(in Dataset) Row {
	sum := decimal.Zero
	for _, b := range in.Bills {
		sum = sum.Add(b.Outstanding())
	}
	return outstandingRow(KeyPayables, "Payables", sum, len(in.Bills))
}

func outstandingRow(key, label string, sum decimal.Decimal, n int) Row {
	return Row{Key: key, Label: label, Values: map[string]decimal.Decimal{
		ValueOutstanding: sum,
		ValueCount:       decimal.NewFromInt(int64(n)),
	}}
}

func amount(v decimal.Decimal) map[string]decimal.Decimal {
	return map[string]decimal.Decimal{ValueAmount: v}
}
