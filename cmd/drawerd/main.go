// drawerd serves the cart drawer over HTTP and MCP.
// Designed for Cloud Run deployment; per-shopper state travels in the
// Drawer-State header and opt-outs live in the configured storage.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cart-drawer/internal/config"
	"cart-drawer/internal/drawer"
	"cart-drawer/internal/handler"
	"cart-drawer/internal/markup"
	"cart-drawer/internal/middleware"
	"cart-drawer/internal/shopify"
	"cart-drawer/internal/storage"
	"cart-drawer/internal/transport"
)

// demoPrice is the unit price of unknown variants in the memory adapter.
const demoPrice = 1000

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()
	slog.SetDefault(logger)

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("store_id", cfg.StoreID),
		slog.String("adapter_type", cfg.AdapterType),
		slog.String("environment", cfg.Environment),
		slog.String("store_url", cfg.Store.StoreURL),
		slog.String("storage", cfg.Storage.Driver),
	)

	kv, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer kv.Close()

	carts, err := createCarts(cfg)
	if err != nil {
		return fmt.Errorf("creating cart adapter: %w", err)
	}

	settings := cfg.BuildDrawerSettings()
	if cfg.NeedsMarkupSettings() {
		settings, err = loadMarkupSettings(ctx, carts(""), cfg.Store.PagePath, settings)
		if err != nil {
			return fmt.Errorf("reading drawer settings from storefront: %w", err)
		}
		logger.Info("drawer settings read from storefront",
			slog.Int64("protection_line_item_id", settings.Protection.LineItemID),
			slog.Int("thresholds", len(settings.Thresholds)),
		)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sessions := &handler.Sessions{
		Cart:     carts,
		Storage:  kv,
		Settings: settings,
		Fetcher:  drawer.NewFetcher(),
		Metrics:  drawer.NewMetrics(registry),
		Logger:   logger,
	}
	h := handler.New(sessions, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Apply middleware chain: recovery → request id → logging → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// createCarts returns the per-shopper cart factory for the configured adapter.
func createCarts(cfg *config.Config) (func(cartToken string) drawer.CartService, error) {
	switch cfg.AdapterType {
	case config.AdapterShopify:
		client, err := shopify.New(shopify.Config{
			StoreURL:   cfg.Store.StoreURL,
			HTTPClient: transport.NewClient(transport.Options{Fingerprint: cfg.Store.TLSFingerprint}),
		})
		if err != nil {
			return nil, err
		}
		return func(cartToken string) drawer.CartService {
			return client.Session(cartToken)
		}, nil
	case config.AdapterMemory:
		// One shared demo cart regardless of token
		fake := drawer.NewFake().WithDefaultPrice(demoPrice)
		return func(string) drawer.CartService {
			return fake
		}, nil
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", cfg.AdapterType)
	}
}

// loadMarkupSettings fills unset drawer settings from the data attributes on
// the storefront page.
func loadMarkupSettings(ctx context.Context, cart drawer.CartService, path string, settings drawer.Settings) (drawer.Settings, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	page, err := cart.FetchPage(ctx, path)
	if err != nil {
		return settings, err
	}
	parsed, err := markup.ParseSettings(page)
	if err != nil {
		return settings, err
	}
	return settings.MergeMarkup(parsed)
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
