package reports

import (
	"testing"
	"time"

	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	settlement = uuid.MustParse("a7d0f6c4-1111-4c2b-9d7e-000000000001")
	rent       = uuid.MustParse("a7d0f6c4-1111-4c2b-9d7e-000000000002")
	utilities  = uuid.MustParse("a7d0f6c4-1111-4c2b-9d7e-000000000003")
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func expenseTxn(amount int64, category uuid.UUID, date time.Time) models.Transaction {
	return models.Transaction{ID: uuid.New(), Type: enums.TransactionTypeExpense, CategoryID: &category, Amount: d(amount), Date: date}
}

// scenario is one completed order of 1000, one bill of 400, an operating
// expense of 100 and the 400 settlement of the bill, all in October.
func scenario() Dataset {
	day := time.Date(2026, 10, 5, 12, 0, 0, 0, time.UTC)
	return Dataset{
		Orders: []models.Order{{ID: uuid.New(), Date: day, Status: enums.OrderStatusCompleted, Total: d(1000), PaidAmount: d(1000)}},
		Bills:  []models.Bill{{ID: uuid.New(), Date: day, Status: enums.BillStatusPaid, Total: d(400), PaidAmount: d(400)}},
		Transactions: []models.Transaction{
			expenseTxn(100, rent, day),
			expenseTxn(400, settlement, day),
			{ID: uuid.New(), Type: enums.TransactionTypeIncome, Amount: d(1000), Date: day},
		},
	}
}

func thisMonth(t *testing.T) Window {
	t.Helper()
	w, err := RangeSpec{Kind: enums.RangeKindThisMonth}.Resolve(clock, time.UTC)
	require.NoError(t, err)
	return w
}

func rowByKey(t *testing.T, rows []Row, key string) Row {
	t.Helper()
	for _, r := range rows {
		if r.Key == key {
			return r
		}
	}
	t.Fatalf("row %s not found", key)
	return Row{}
}

func TestCashFlowScenario(t *testing.T) {
	rows, err := Aggregate(enums.ReportKindCashFlow, thisMonth(t), scenario(), Options{SettlementCategoryID: settlement, Year: 2026})
	require.NoError(t, err)
	require.Len(t, rows, 12)

	oct := rowByKey(t, rows, "2026-10")
	assert.Equal(t, "Oct", oct.Label)
	assert.True(t, oct.Values[ValueIncome].Equal(d(1000)), "income %s", oct.Values[ValueIncome])
	assert.True(t, oct.Values[ValueExpense].Equal(d(500)), "expense %s", oct.Values[ValueExpense])
	assert.True(t, oct.Values[ValueProfit].Equal(d(500)))

	sep := rowByKey(t, rows, "2026-09")
	assert.True(t, sep.Values[ValueIncome].IsZero())
}

func TestCashFlowIgnoresOtherYears(t *testing.T) {
	data := scenario()
	data.Orders = append(data.Orders, models.Order{Date: time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC), Total: d(50)})
	rows, err := Aggregate(enums.ReportKindCashFlow, Window{}, data, Options{SettlementCategoryID: settlement, Year: 2026})
	require.NoError(t, err)
	assert.True(t, rowByKey(t, rows, "2026-10").Values[ValueIncome].Equal(d(1000)))
}

func TestCashFlowRequiresYear(t *testing.T) {
	rows, err := Aggregate(enums.ReportKindCashFlow, Window{}, scenario(), Options{SettlementCategoryID: settlement})
	assert.Nil(t, rows)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestProfitAndLossScenario(t *testing.T) {
	data := scenario()
	data.Orders = append(data.Orders, models.Order{Date: time.Date(2026, 10, 6, 0, 0, 0, 0, time.UTC), Status: enums.OrderStatusPicked, Total: d(300)})

	rows, err := Aggregate(enums.ReportKindProfitAndLoss, thisMonth(t), data, Options{SettlementCategoryID: settlement})
	require.NoError(t, err)

	want := map[string]int64{
		KeyGrossSales:        1000,
		KeyCostOfGoodsSold:   400,
		KeyGrossProfit:       600,
		KeyOperatingExpenses: 100,
		KeyNetProfit:         500,
	}
	for key, v := range want {
		got := rowByKey(t, rows, key).Values[ValueAmount]
		assert.True(t, got.Equal(d(v)), "%s: got %s want %d", key, got, v)
	}
}

func TestExpenseByCategoryExcludesSettlement(t *testing.T) {
	data := scenario()
	data.Transactions = append(data.Transactions,
		expenseTxn(30, utilities, time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)),
		expenseTxn(20, rent, time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)),
		models.Transaction{Type: enums.TransactionTypeExpense, Amount: d(7), Date: time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)},
	)

	rows, err := Aggregate(enums.ReportKindExpenseByCategory, thisMonth(t), data, Options{SettlementCategoryID: settlement})
	require.NoError(t, err)

	assert.Equal(t, KeyPurchases, rows[0].Key)
	assert.True(t, rows[0].Values[ValueAmount].Equal(d(400)))
	assert.True(t, rowByKey(t, rows, rent.String()).Values[ValueAmount].Equal(d(120)))
	assert.True(t, rowByKey(t, rows, utilities.String()).Values[ValueAmount].Equal(d(30)))
	assert.True(t, rowByKey(t, rows, KeyUncategorized).Values[ValueAmount].Equal(d(7)))
	for _, r := range rows {
		assert.NotEqual(t, settlement.String(), r.Key)
	}
}

func TestReceivablesAndPayablesIgnoreStatus(t *testing.T) {
	day := time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC)
	data := Dataset{
		Orders: []models.Order{
			{Date: day, Status: enums.OrderStatusOnHold, Total: d(200), PaidAmount: d(50)},
			{Date: day, Status: enums.OrderStatusCompleted, Total: d(100), PaidAmount: d(100)},
		},
		Bills: []models.Bill{{Date: day, Status: enums.BillStatusOnHold, Total: d(80), PaidAmount: d(0)}},
	}

	rows, err := Aggregate(enums.ReportKindReceivables, thisMonth(t), data, Options{})
	require.NoError(t, err)
	assert.True(t, rows[0].Values[ValueOutstanding].Equal(d(150)))
	assert.True(t, rows[0].Values[ValueCount].Equal(d(2)))

	rows, err = Aggregate(enums.ReportKindPayables, thisMonth(t), data, Options{})
	require.NoError(t, err)
	assert.True(t, rows[0].Values[ValueOutstanding].Equal(d(80)))
}

func TestCustomRangeBoundaries(t *testing.T) {
	from := time.Date(2026, 10, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 10, 7, 0, 0, 0, 0, time.UTC)
	w, err := RangeSpec{Kind: enums.RangeKindCustom, From: from, To: to}.Resolve(clock, time.UTC)
	require.NoError(t, err)

	data := Dataset{Orders: []models.Order{
		{Date: from, Status: enums.OrderStatusCompleted, Total: d(1)},
		{Date: time.Date(2026, 10, 7, 23, 0, 0, 0, time.UTC), Status: enums.OrderStatusCompleted, Total: d(10)},
		{Date: time.Date(2026, 10, 4, 23, 59, 0, 0, time.UTC), Status: enums.OrderStatusCompleted, Total: d(100)},
		{Date: time.Date(2026, 10, 8, 0, 0, 0, 0, time.UTC), Status: enums.OrderStatusCompleted, Total: d(1000)},
	}}

	rows, err := Aggregate(enums.ReportKindProfitAndLoss, w, data, Options{})
	require.NoError(t, err)
	assert.True(t, rowByKey(t, rows, KeyGrossSales).Values[ValueAmount].Equal(d(11)))
}

func TestAggregateUnknownKind(t *testing.T) {
	_, err := Aggregate("balance_sheet", Window{}, Dataset{}, Options{})
	assert.Error(t, err)
}
