package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"no3d-library-api/app"
	"no3d-library-api/config"
	"no3d-library-api/obs"
)

func main() {
	// Load .env in development; production sets variables directly.
	// Overload lets .env values win over the shell environment.
	envLoaded := false
	if os.Getenv("ENV") != "production" {
		envLoaded = godotenv.Overload(".env") == nil
	}

	cfg := config.Load()
	obs.InitLogger(cfg.LogLevel, cfg.LogFormat)
	obs.Logger.Info("service_starting", "env", cfg.Env, "dotenv_loaded", envLoaded)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize application
	application, err := app.Initialize(ctx, cfg)
	if err != nil {
		obs.Logger.Error("app_initialize_failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Listen on 0.0.0.0 to accept connections from all interfaces
	addr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// archive builds run inside the request
		WriteTimeout: cfg.ArchiveBuildTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		obs.Logger.Info("http_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obs.Logger.Error("http_server_error", "error", err)
			os.Exit(1)
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigc
	obs.Logger.Info("shutdown_signal", "signal", s.String())

	ctxSrv, cancelSrv := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelSrv()
	if err := srv.Shutdown(ctxSrv); err != nil {
		obs.Logger.Error("http_shutdown_error", "error", err)
	}
	obs.Logger.Info("service_stopped")
}
