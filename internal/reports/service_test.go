package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupReportsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedScenario(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	for _, row := range scenario().Orders {
		row.Number = "SO-" + uuid.NewString()[:8]
		row.History = types.History{}
		_, err := orders.NewRepository(db).Create(ctx, &row)
		require.NoError(t, err)
	}
	for _, row := range scenario().Bills {
		row.Number = "PB-" + uuid.NewString()[:8]
		row.History = types.History{}
		_, err := bills.NewRepository(db).Create(ctx, &row)
		require.NoError(t, err)
	}
	for _, row := range scenario().Transactions {
		row.AccountID = uuid.New()
		row.PaymentMethod = enums.PaymentMethodCash
		_, err := transactions.NewRepository(db).Create(ctx, &row)
		require.NoError(t, err)
	}
	// Outside this month.
	old := models.Order{Number: "SO-OLD", Date: time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC), Status: enums.OrderStatusCompleted, Total: d(999), History: types.History{}}
	_, err := orders.NewRepository(db).Create(ctx, &old)
	require.NoError(t, err)
}

func newReportService(t *testing.T, db *gorm.DB) *service {
	t.Helper()
	svc, err := NewService(orders.NewRepository(db), bills.NewRepository(db), transactions.NewRepository(db), Options{SettlementCategoryID: settlement, Location: time.UTC}, logger.Nop())
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return clock }
	return impl
}

func TestReportProfitAndLossFromStore(t *testing.T) {
	db := setupReportsTestDB(t)
	seedScenario(t, db)
	svc := newReportService(t, db)

	report, err := svc.Report(context.Background(), ReportInput{Kind: enums.ReportKindProfitAndLoss, Range: RangeSpec{Kind: enums.RangeKindThisMonth}})
	require.NoError(t, err)
	assert.True(t, report.Window.Bounded)
	assert.True(t, rowByKey(t, report.Rows, KeyGrossSales).Values[ValueAmount].Equal(d(1000)))
	assert.True(t, rowByKey(t, report.Rows, KeyNetProfit).Values[ValueAmount].Equal(d(500)))
}

func TestReportCashFlowDefaultsToCurrentYear(t *testing.T) {
	db := setupReportsTestDB(t)
	seedScenario(t, db)
	svc := newReportService(t, db)

	report, err := svc.Report(context.Background(), ReportInput{Kind: enums.ReportKindCashFlow})
	require.NoError(t, err)
	assert.Equal(t, 2026, report.Year)
	assert.Equal(t, enums.RangeKindAllTime, report.Range)
	assert.True(t, rowByKey(t, report.Rows, "2026-09").Values[ValueIncome].Equal(d(999)))
	assert.True(t, rowByKey(t, report.Rows, "2026-10").Values[ValueExpense].Equal(d(500)))
}

type failingOrders struct{}

func (failingOrders) List(context.Context, orders.ListFilter) ([]models.Order, error) {
	return nil, errors.New("connection refused")
}

func TestReportLoadFailureIsDependency(t *testing.T) {
	db := setupReportsTestDB(t)
	svc, err := NewService(failingOrders{}, bills.NewRepository(db), transactions.NewRepository(db), Options{}, logger.Nop())
	require.NoError(t, err)

	_, err = svc.Report(context.Background(), ReportInput{Kind: enums.ReportKindPayables})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = svc.Report(context.Background(), ReportInput{Kind: "ledger"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
