package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bizledger-backend/api/controllers"
	accountcontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/accounts"
	billcontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/bills"
	ordercontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/payments"
	reportcontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/reports"
	transactioncontrollers "github.com/angelmondragon/bizledger-backend/api/controllers/transactions"
	"github.com/angelmondragon/bizledger-backend/api/middleware"
	"github.com/angelmondragon/bizledger-backend/internal/accounts"
	"github.com/angelmondragon/bizledger-backend/internal/bills"
	"github.com/angelmondragon/bizledger-backend/internal/orders"
	"github.com/angelmondragon/bizledger-backend/internal/payments"
	"github.com/angelmondragon/bizledger-backend/internal/reports"
	"github.com/angelmondragon/bizledger-backend/internal/transactions"
	"github.com/angelmondragon/bizledger-backend/pkg/config"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	"github.com/angelmondragon/bizledger-backend/pkg/logger"
	"github.com/angelmondragon/bizledger-backend/pkg/metrics"
	"github.com/angelmondragon/bizledger-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	ordersService orders.Service,
	billsService bills.Service,
	paymentsService payments.Service,
	accountsService accounts.Service,
	transactionsService transactions.Service,
	reportsService reports.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.Recoverer(logg, httpMetrics),
	)

	var idempotencyStore redis.IdempotencyStore
	readiness := map[string]controllers.Pinger{}
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/{id}", ordercontrollers.Detail(ordersService, logg))
			r.Put("/{id}/items", ordercontrollers.UpdateItems(ordersService, logg))
			r.Post("/{id}/status", ordercontrollers.Transition(ordersService, logg))
			r.Post("/{id}/payments", paymentcontrollers.Record(paymentsService, enums.EntityKindOrder, logg))
		})

		r.Route("/bills", func(r chi.Router) {
			r.Post("/", billcontrollers.Create(billsService, logg))
			r.Get("/{id}", billcontrollers.Detail(billsService, logg))
			r.Put("/{id}/items", billcontrollers.UpdateItems(billsService, logg))
			r.Post("/{id}/status", billcontrollers.Transition(billsService, logg))
			r.Post("/{id}/payments", paymentcontrollers.Record(paymentsService, enums.EntityKindBill, logg))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", accountcontrollers.Create(accountsService, logg))
			r.Get("/", accountcontrollers.List(accountsService, logg))
			r.Get("/{id}", accountcontrollers.Detail(accountsService, logg))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", transactioncontrollers.Record(transactionsService, logg))
			r.Get("/", transactioncontrollers.List(transactionsService, logg))
		})

		r.Get("/reports/{kind}", reportcontrollers.Report(reportsService, logg))
	})

	return r
}
