// Package app wires the marketplace services into an HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/streetwear-market/internal/domain/inventory"
	"github.com/xenking/streetwear-market/internal/domain/order"
	"github.com/xenking/streetwear-market/internal/domain/review"
	"github.com/xenking/streetwear-market/internal/handler"
	"github.com/xenking/streetwear-market/pkg/health"
	"github.com/xenking/streetwear-market/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is usually
// the *app.Telemetry handed out by go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	pepper := []byte(cfg.APIKeyPepper)
	if err := registerAdminKey(ctx, st.apiKeys, pepper, cfg.AdminAPIKey); err != nil {
		return errors.Wrap(err, "register admin key")
	}

	// Health check service.
	healthSvc := health.New()
	if st.ping != nil {
		healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(st.ping),
			health.WithThresholds(2, 2))
	}
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc-pause", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	calc, err := cfg.Pricing.Calculator()
	if err != nil {
		return errors.Wrap(err, "pricing config")
	}
	inv := inventory.NewManager(st.products)
	orderSvc, err := order.NewService(st.products, st.orders, st.sellers, inv, calc, st.tx,
		order.WithMeterProvider(m.MeterProvider()),
		order.WithTracerProvider(m.TracerProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	reviewSvc := review.NewService(st.reviews, st.products, st.orders, cfg.Reviews.AutoApprove)

	// HTTP handlers.
	h := handler.New(st.products, inv, orderSvc, reviewSvc, st.sellers,
		handler.NewAuthenticator(st.apiKeys, pepper),
	)

	// Mux: health endpoints + gin API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", handler.NewEngine(h))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("market-api", m),
			httpmiddleware.LogRequests(),
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
