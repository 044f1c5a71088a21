// Command trainer runs the two background passes that turn detected
// faces into identified people: the Face Clustering pass, which groups
// unassigned faces and suggests a Person for well-formed groups, and the
// Training Coordinator, which enrolls assigned faces against the
// external face-recognition service.
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

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photovault/internal/clustering"
	"github.com/your-org/photovault/internal/config"
	"github.com/your-org/photovault/internal/faces"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/storage"
	"github.com/your-org/photovault/internal/training"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	queuePerson := flag.String("queue-person", "", "enqueue this person id's not-yet-synced training faces, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting trainer", "clustering_interval", cfg.Clustering.Interval, "training_poll_interval", cfg.Training.PollInterval)

	store, err := storage.New(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	faceClient := faces.NewClient(cfg.Faces.BaseURL, cfg.Faces.DetectionKey, cfg.Faces.RecognitionKey,
		cfg.Faces.Timeout, cfg.Faces.MaxRetries)

	clusterer := clustering.New(store, clustering.Config{
		MinSimilarity:          cfg.Clustering.MinSimilarity,
		MinClusterSize:         cfg.Clustering.MinClusterSize,
		CandidateWindowSeconds: int64(cfg.Clustering.CandidateWindow.Seconds()),
	})
	coordinator := training.New(store, faceClient, cfg.Training.MaxRetries, cfg.Training.RetryBackoff,
		cfg.Training.MinFacesThreshold, cfg.Training.TrainingInterval)

	if *queuePerson != "" {
		personID, err := uuid.Parse(*queuePerson)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid person id %q: %v\n", *queuePerson, err)
			os.Exit(1)
		}
		n, err := coordinator.QueuePerson(context.Background(), personID)
		if err != nil {
			slog.Error("queue person for training", "person_id", personID, "error", err)
			os.Exit(1)
		}
		slog.Info("queued faces for training", "person_id", personID, "count", n)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runClusteringLoop(ctx, clusterer, cfg.Clustering.Interval)
	go runTrainingLoop(ctx, coordinator, cfg.Training.PollInterval)
	go runMetricsServer(cfg.Server.MetricsPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down trainer...")
	cancel()
	time.Sleep(time.Second)
	slog.Info("trainer stopped")
}

func runClusteringLoop(ctx context.Context, clusterer *clustering.Clusterer, interval time.Duration) {
	run := func() {
		n, err := clusterer.Run(ctx)
		if err != nil {
			slog.Error("clustering pass", "error", err)
			return
		}
		slog.Info("clustering pass complete", "clusters", n)
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// runTrainingLoop alternates auto-queuing Persons due for training
// (Coordinator.AutoTrain) and draining whatever enrollment backlog that
// (and manual QueuePerson calls) produced.
func runTrainingLoop(ctx context.Context, coordinator *training.Coordinator, interval time.Duration) {
	const processBatch = 50

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if queued, err := coordinator.AutoTrain(ctx); err != nil {
				slog.Error("auto-train", "error", err)
			} else if queued > 0 {
				slog.Info("auto-train queued faces", "count", queued)
			}

			succeeded, failed, err := coordinator.ProcessQueue(ctx, processBatch)
			if err != nil {
				slog.Error("process training queue", "error", err)
				continue
			}
			if succeeded > 0 || failed > 0 {
				slog.Info("training queue processed", "succeeded", succeeded, "failed", failed)
			}
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
	slog.Info("trainer metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server error", "error", err)
	}
}
