package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sanisidro/sanisidro-api/internal/domain/identity"
	"github.com/sanisidro/sanisidro-api/internal/domain/order"
	"github.com/sanisidro/sanisidro-api/internal/domain/promotion"
	"github.com/sanisidro/sanisidro-api/internal/events"
	"github.com/sanisidro/sanisidro-api/internal/handler"
	"github.com/sanisidro/sanisidro-api/internal/reniec"
	"github.com/sanisidro/sanisidro-api/internal/repository"
	"github.com/sanisidro/sanisidro-api/pkg/health"
	"github.com/sanisidro/sanisidro-api/pkg/httpmiddleware"
)

const serviceName = "sanisidro-api"

type publisher interface {
	order.Publisher
	Close() error
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.String("timezone", cfg.Timezone))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Check{
		Name:    "postgres",
		Kind:    health.Readiness,
		Timeout: 5 * time.Second,
		Func:    health.PingCheck(pool),
	})
	healthSvc.Add(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineCountCheck(10000),
	})
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	orderRepo := repository.NewOrderRepository(pool)
	promoRepo := repository.NewPromotionRepository(pool)
	tx := repository.NewTransactor(pool)

	finder := promotion.NewCachedFinder(promoRepo, cfg.PromotionCache.Size, cfg.PromotionCache.TTL)
	finder.StartJanitor(ctx, cfg.PromotionCache.JanitorInterval)

	// Order events.
	var pub publisher
	if len(cfg.Kafka.Brokers) > 0 {
		lg.Info("Publishing order events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
		pub = events.NewKafkaPublisher(cfg.Kafka)
	} else {
		lg.Info("No Kafka brokers configured, order events are only logged")
		pub = events.NewLogPublisher(lg.Named("events"))
	}
	defer func() {
		if err := pub.Close(); err != nil {
			lg.Warn("Close event publisher", zap.Error(err))
		}
	}()

	// DNI lookups stay disabled without a token.
	var lookup identity.Lookup
	if cfg.DNI.Enabled() {
		lookup = reniec.NewClient(cfg.DNI, m.TracerProvider())
	} else {
		lg.Warn("DNI token not configured, lookups disabled")
	}

	// Domain services.
	promotionService := promotion.NewService(promoRepo, finder, loc)
	orderService := order.NewService(orderRepo, finder, tx, pub, loc)

	// HTTP handlers.
	h, err := handler.New(orderService, promotionService, lookup, m.MeterProvider().Meter(serviceName))
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	router := chi.NewRouter()
	router.Use(
		httpmiddleware.Instrument(serviceName, m),
		httpmiddleware.Labeler(),
		httpmiddleware.LogRequests(),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORS.Origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", httpmiddleware.HeaderRequestID},
			ExposedHeaders:   []string{httpmiddleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   isProbe,
		}),
	)
	healthSvc.Routes(router)
	h.Init(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
