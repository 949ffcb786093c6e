package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/ardenlake/bookshop/internal/application/cart"
	appcheckout "github.com/ardenlake/bookshop/internal/application/checkout"
	apporder "github.com/ardenlake/bookshop/internal/application/order"
	"github.com/ardenlake/bookshop/internal/auth"
	httptransport "github.com/ardenlake/bookshop/internal/infrastructure/http"
	"github.com/ardenlake/bookshop/internal/infrastructure/id"
	"github.com/ardenlake/bookshop/internal/infrastructure/memory"
	"github.com/ardenlake/bookshop/internal/infrastructure/notify"
	"github.com/ardenlake/bookshop/internal/infrastructure/observability/oteltrace"
	"github.com/ardenlake/bookshop/internal/infrastructure/observability/prometrics"
	"github.com/ardenlake/bookshop/internal/infrastructure/observability/telemetry"
	"github.com/ardenlake/bookshop/internal/infrastructure/observability/zaplogger"
	"github.com/ardenlake/bookshop/internal/infrastructure/outbox"
	"github.com/ardenlake/bookshop/internal/observability"
	"github.com/ardenlake/bookshop/internal/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	metrics := prometrics.New("bookshop", nil)
	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		logger,
		map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests: metrics.Counter(observability.MUsecaseRequests,
				"Total number of use case invocations.", "use_case", "outcome"),
			observability.MHTTPRequests: metrics.Counter(observability.MHTTPRequests,
				"Total number of HTTP requests.", "method", "route", "status"),
			observability.MCheckoutAborts: metrics.Counter(observability.MCheckoutAborts,
				"Count of aborted checkout attempts by reason.", "reason"),
			observability.MStockReleased: metrics.Counter(observability.MStockReleased,
				"Units released back to the stock ledger.", "reason"),
		},
		map[observability.MetricKey]observability.Histogram{
			observability.MUsecaseDuration: metrics.Histogram(observability.MUsecaseDuration,
				"Duration of use case execution in seconds.", nil, "use_case"),
			observability.MHTTPRequestDuration: metrics.Histogram(observability.MHTTPRequestDuration,
				"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		},
	)

	ledger := memory.NewLedger()
	cartStore := memory.NewCartStore()
	orderRepo := memory.NewOrderRepository()
	catalog := memory.NewCatalog()
	idGen := id.NewUUIDGenerator()

	bus := outbox.NewBus(tel)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	cartService := appcart.NewService(cartStore, ledger, catalog, tel)
	coordinator := appcheckout.NewCoordinator(
		cartStore, ledger, catalog, orderRepo, idGen, bus, tel,
		appcheckout.WithAttemptWindow(cfg.CheckoutWindow),
		appcheckout.WithPriceFanout(cfg.PriceFanout),
	)
	orderService := apporder.NewService(orderRepo, ledger, bus, tel)

	notifyWorker := notify.New(bus, notify.NewLogNotifier(tel), tel)
	notifyWorker.Start()

	handler := httptransport.NewHandler(
		cartService, coordinator, orderService, catalog, ledger,
		auth.NewHeaderResolver(cfg.OwnerHeader),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router(
		httptransport.ObservabilityMiddleware(tel.Logger(), tel),
	))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	systemLogger := tel.Logger().With(observability.F("component", "main"))

	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
}
