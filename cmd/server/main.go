package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Victor-Weng/sunset-spot/internal/config"
	"github.com/Victor-Weng/sunset-spot/internal/logs"
	"github.com/Victor-Weng/sunset-spot/internal/server"
	"github.com/Victor-Weng/sunset-spot/internal/telemetry"
)

func main() {
	cfg := config.LoadConfig()
	if err := logs.Init(cfg.LogLevel); err != nil {
		logs.LogJSON("FATAL", "Invalid LOG_LEVEL", map[string]interface{}{"error": err.Error()})
	}
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		logs.LogJSON("FATAL", "Tracing setup failed", map[string]interface{}{"error": err.Error()})
	}

	st, err := server.OpenStore(cfg)
	if err != nil {
		logs.LogJSON("FATAL", "Database connection failed", map[string]interface{}{"error": err.Error()})
	}
	app, err := server.NewApp(ctx, cfg, st)
	if err != nil {
		logs.LogJSON("FATAL", "Startup failed", map[string]interface{}{"error": err.Error()})
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           telemetry.Wrap(server.NewRouter(app), cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logs.LogJSON("INFO", "Server listening", map[string]interface{}{"extra": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.LogJSON("FATAL", "Server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	logs.LogJSON("INFO", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.LogJSON("ERROR", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := app.Close(); err != nil {
		logs.LogJSON("ERROR", "Closing collaborators failed", map[string]interface{}{"error": err.Error()})
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logs.LogJSON("WARN", "Tracing shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
