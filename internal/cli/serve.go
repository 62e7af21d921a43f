package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"review-reply-automation/internal/runner"
	"review-reply-automation/internal/scheduler"
	"review-reply-automation/internal/worker"
)

// NewServeCmd creates the serve command
func NewServeCmd(app *App) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run store sessions on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, runNow)
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "Queue a run for every store at startup")
	return cmd
}

func serve(ctx context.Context, runNow bool) error {
	e, err := wire(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	cfg := e.cfg

	pool := worker.NewPool(ctx, cfg.Schedule.ParallelStores, cfg.Schedule.QueueSize)
	pool.Start()

	sched, err := scheduler.New(cfg.Schedule.Cron, pool, e.runner, func() []string {
		return runner.StoreCodes(cfg)
	})
	if err != nil {
		return err
	}
	codes := runner.StoreCodes(cfg)
	slog.Info("storefronts warmed up", "connected", e.runner.Warmup(codes), "stores", len(codes))

	sched.Start()
	if runNow {
		sched.Tick()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      newMux(e.runner.Healthy),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port, "schedule", cfg.Schedule.Cron)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-serverErr:
		slog.Error("server failed", "error", err)
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		slog.Warn("worker pool stopped with pending jobs", "error", err)
	}

	slog.Info("server exiting")
	return err
}

// newMux serves liveness, readiness and prometheus metrics.
func newMux(ready func() bool) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if !ready() {
			slog.Warn("storefront unhealthy")
			http.Error(w, "Storefront Service Unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("READY"))
	})

	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
