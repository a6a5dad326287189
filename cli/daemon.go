// ABOUTME: Background sync daemon command
// ABOUTME: Periodic queue drain and remote pull until SIGINT/SIGTERM
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coldflow/coldflow/config"
	"github.com/coldflow/coldflow/sync"
)

// DaemonCommand runs the sync loop in the foreground: an incremental pull on
// startup, queue drain every QueueTick, and a pull every PullTick. The
// throttle and morning-full-sync rules live in the engine; the daemon just
// ticks.
func DaemonCommand(svc *sync.Service, cfg *config.Config, logger *slog.Logger, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsBind, Handler: mux}
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsBind)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() { _ = server.Close() }()
	}

	logger.Info("sync daemon started",
		"queue_tick", cfg.QueueTick().String(),
		"pull_tick", cfg.PullTick().String())

	svc.FetchRemote(ctx, sync.FetchOptions{})
	drainQueue(ctx, svc, logger)

	queueTicker := time.NewTicker(cfg.QueueTick())
	defer queueTicker.Stop()
	pullTicker := time.NewTicker(cfg.PullTick())
	defer pullTicker.Stop()

	for {
		select {
		case <-queueTicker.C:
			drainQueue(ctx, svc, logger)
		case <-pullTicker.C:
			svc.FetchRemote(ctx, sync.FetchOptions{})
		case sig := <-sigChan:
			logger.Info("shutting down", "signal", sig.String())
			cancel()
			drainQueue(context.Background(), svc, logger)
			fmt.Println("Daemon stopped")
			return nil
		}
	}
}

func drainQueue(ctx context.Context, svc *sync.Service, logger *slog.Logger) {
	if err := svc.ProcessQueue(ctx); err != nil {
		logger.Error("queue drain failed", "error", err)
	}
}
