package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"queue_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	bootstrap.Wire()

	// 4. Engine and streams
	bootstrap.Manager.Start(ctx)
	defer bootstrap.Manager.Stop()

	// The user stream runs for the whole process. Market streams follow the
	// per-instrument order lifecycle and are opened by the manager.
	bootstrap.UserStream.Start(ctx)
	defer bootstrap.UserStream.Stop()
	slog.InfoContext(ctx, "✅ User stream started")

	defer bootstrap.Publisher.Close()

	slog.InfoContext(ctx, "✨ Queue Go fully operational. Press Ctrl+C to exit.",
		slog.Int("instruments", len(bootstrap.Config.API.Binance.Instruments)))

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
