package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/bizledger-backend/internal/accounts"
	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/cache"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/internal/payments"
	"github.com/angelmondragon/bizledger-backend/internal/reports"
	"github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/auth"
	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/db/models"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
)

type testApp struct {
	handler http.Handler
	token   string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// Payment writes fan out; one connection keeps sqlite from reporting lock contention.
	sqlDB.SetMaxOpenConns(1)

	logg := logger.Nop()
	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	readCache, err := cache.NewLRU(128, time.Minute, metrics.NewCacheMetrics(registry))
	require.NoError(t, err)

	settings := payments.Settings{
		SettlementCategoryID: uuid.New(),
		SaleCategoryID:       uuid.New(),
		DefaultPaymentMethod: enums.PaymentMethodCash,
	}

	ordersRepo := orders.NewRepository(conn)
	billsRepo := bills.NewRepository(conn)
	transactionsRepo := transactions.NewRepository(conn)

	ordersService, err := orders.NewService(ordersRepo, readCache, logg)
	require.NoError(t, err)
	billsService, err := bills.NewService(billsRepo, readCache, logg)
	require.NoError(t, err)
	accountsService, err := accounts.NewService(accounts.NewRepository(conn), readCache, logg)
	require.NoError(t, err)
	transactionsService, err := transactions.NewService(transactionsRepo, accountsService, settings.DefaultPaymentMethod, ledgerMetrics, logg)
	require.NoError(t, err)
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Orders:       ordersRepo,
		Bills:        billsRepo,
		Transactions: transactionsRepo,
		Accounts:     accountsService,
		Cache:        readCache,
		Settings:     settings,
		Metrics:      ledgerMetrics,
		Logger:       logg,
	})
	require.NoError(t, err)
	reportsService, err := reports.NewService(ordersRepo, billsRepo, transactionsRepo, reports.Options{
		SettlementCategoryID: settings.SettlementCategoryID,
		Location:             time.UTC,
	}, logg)
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "bizledger"},
	}
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, auth.AccessTokenPayload{UserID: uuid.New(), Role: "bookkeeper"})
	require.NoError(t, err)

	return &testApp{
		handler: NewRouter(cfg, logg, nil, nil, registry, metrics.NewHTTPMetrics(registry),
			ordersService, billsService, paymentsService, accountsService, transactionsService, reportsService),
		token: token,
	}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader).WithContext(context.Background())
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	a.handler.ServeHTTP(resp, req)
	return resp
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, dest))
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	envelope := struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Error.Code
}

type accountBody struct {
	ID             uuid.UUID       `json:"id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

type orderBody struct {
	ID         uuid.UUID       `json:"id"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	app := newTestApp(t)

	live := httptest.NewRecorder()
	app.handler.ServeHTTP(live, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, live.Code)

	ready := httptest.NewRecorder()
	app.handler.ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, ready.Code)

	scrape := httptest.NewRecorder()
	app.handler.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, scrape.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	app := newTestApp(t)

	resp := httptest.NewRecorder()
	app.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, resp))
}

func TestOrderPaymentFlow(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{
		"name": "Till", "type": "cash", "opening_balance": "100",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var account accountBody
	decodeData(t, resp, &account)

	resp = app.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"number":      "SO-1001",
		"customer_id": uuid.NewString(),
		"items":       []map[string]any{{"product_id": uuid.NewString(), "rate": "25", "qty": "4"}},
		"discount":    "0",
		"shipping":    "0",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var order orderBody
	decodeData(t, resp, &order)
	require.True(t, order.Total.Equal(decimal.NewFromInt(100)), "total %s", order.Total)

	resp = app.do(t, http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/payments", map[string]any{
		"amount": "40", "account_id": account.ID.String(),
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var outcome struct {
		NewPaid    decimal.Decimal `json:"new_paid"`
		NewBalance decimal.Decimal `json:"new_balance"`
	}
	decodeData(t, resp, &outcome)
	assert.True(t, outcome.NewPaid.Equal(decimal.NewFromInt(40)), "new paid %s", outcome.NewPaid)
	assert.True(t, outcome.NewBalance.Equal(decimal.NewFromInt(140)), "new balance %s", outcome.NewBalance)

	resp = app.do(t, http.MethodGet, "/api/v1/accounts/"+account.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &account)
	assert.True(t, account.CurrentBalance.Equal(decimal.NewFromInt(140)), "balance %s", account.CurrentBalance)

	resp = app.do(t, http.MethodGet, "/api/v1/orders/"+order.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.Code)
	decodeData(t, resp, &order)
	assert.True(t, order.PaidAmount.Equal(decimal.NewFromInt(40)), "paid %s", order.PaidAmount)
	assert.Equal(t, string(enums.OrderStatusOnHold), order.Status)

	resp = app.do(t, http.MethodGet, "/api/v1/reports/receivables", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var report struct {
		Rows []reports.Row `json:"rows"`
	}
	decodeData(t, resp, &report)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, reports.KeyReceivables, report.Rows[0].Key)
	assert.True(t, report.Rows[0].Values[reports.ValueOutstanding].Equal(decimal.NewFromInt(60)))

	resp = app.do(t, http.MethodGet, "/api/v1/transactions?account_id="+account.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var page struct {
		Items []struct {
			Type   string          `json:"type"`
			Amount decimal.Decimal `json:"amount"`
		} `json:"items"`
	}
	decodeData(t, resp, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, string(enums.TransactionTypeIncome), page.Items[0].Type)
}

func TestStatusActionsThroughRouter(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodPost, "/api/v1/bills", map[string]any{
		"number":    "PB-7",
		"vendor_id": uuid.NewString(),
		"items":     []map[string]any{{"product_id": uuid.NewString(), "rate": "10", "qty": "1"}},
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var bill orderBody
	decodeData(t, resp, &bill)

	resp = app.do(t, http.MethodPost, "/api/v1/bills/"+bill.ID.String()+"/status", map[string]any{"action": "paid"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, resp))

	resp = app.do(t, http.MethodPost, "/api/v1/bills/"+bill.ID.String()+"/status", map[string]any{"action": "process", "note": "dock 2"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	decodeData(t, resp, &bill)
	assert.Equal(t, string(enums.BillStatusProcessing), bill.Status)
}

func TestRouterRejectsBadInput(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = app.do(t, http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = app.do(t, http.MethodGet, "/api/v1/reports/forecast", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = app.do(t, http.MethodGet, "/api/v1/reports/profit_and_loss?range=custom&from=2026-10-20&to=2026-10-01", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = app.do(t, http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/payments", map[string]any{"amount": "0"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.True(t, strings.Contains(resp.Body.String(), string(pkgerrors.CodeValidation)))
}
