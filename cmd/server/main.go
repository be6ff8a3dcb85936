package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/config"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/notify"
	"github.com/mmynk/tripledger/internal/service"
	"github.com/mmynk/tripledger/internal/storage"
	"github.com/mmynk/tripledger/internal/storage/memory"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
	"github.com/mmynk/tripledger/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("")
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level)

	store, err := openStore(cfg.Database)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.Database.Driver, "database", cfg.Database.Path)

	m := metrics.New()
	l := ledger.New(store,
		ledger.WithNotifier(notify.LogNotifier{}),
		ledger.WithRecorder(m),
		ledger.WithMaxWriteRetries(cfg.Ledger.MaxWriteRetries),
	)
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	interceptors := connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager),
	)

	mux := http.NewServeMux()

	// Register Connect services
	mux.Handle(service.NewExpenseServiceHandler(service.NewExpenseService(l), interceptors))
	mux.Handle(service.NewGroupServiceHandler(service.NewGroupService(store), interceptors))

	// Plain HTTP routes
	mux.Handle(service.ExportPattern, middleware.LogRequests(
		middleware.RequireAuthHTTP(jwtManager, service.NewExportHandler(l)),
	))
	mux.Handle("GET /metrics", m.Handler())

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(corsMiddleware(mux), &http2.Server{})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2cHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Connect server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

func openStore(cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nil
	default:
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms, Content-Disposition")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
