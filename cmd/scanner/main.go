// Command scanner runs the Discovery Scanner and Auto-Scanner Loop: it
// periodically walks the source tree recording every candidate file with
// the File Tracker, and separately dispatches pending File Tracker
// entries onto the Job Queue for the workers to pick up.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photovault/internal/autoscan"
	"github.com/your-org/photovault/internal/config"
	"github.com/your-org/photovault/internal/discovery"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/queue"
	"github.com/your-org/photovault/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting scanner", "source_root", cfg.Discovery.SourceRoot)

	store, err := storage.New(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	scanner := discovery.New(store, cfg.Discovery.Extensions, cfg.Discovery.WorkerCount, cfg.Discovery.QueueDepth)
	loop := autoscan.New(store, producer, cfg.Queue.AutoScanInterval, cfg.Queue.AutoScanBatch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runScanLoop(ctx, scanner, cfg.Discovery.SourceRoot, cfg.Discovery.RescanInterval)
	go loop.Run(ctx)
	go runMetricsServer(cfg.Server.MetricsPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scanner...")
	cancel()
	time.Sleep(time.Second)
	slog.Info("scanner stopped")
}

// runScanLoop walks the source tree once immediately, then again every
// interval, so files added after startup are still discovered without
// restarting the process.
func runScanLoop(ctx context.Context, scanner *discovery.Scanner, root string, interval time.Duration) {
	scan := func() {
		start := time.Now()
		n, err := scanner.Scan(ctx, root)
		if err != nil {
			slog.Error("scan source tree", "root", root, "error", err)
			return
		}
		slog.Info("scan complete", "root", root, "discovered", n, "duration", time.Since(start))
	}

	scan()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scan()
		}
	}
}

func runMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	addr := fmt.Sprintf(":%d", port)
	slog.Info("scanner metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server error", "error", err)
	}
}
