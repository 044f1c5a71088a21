// Command worker runs the Job Queue's image_processing consumer: it
// drains dispatched jobs, loads each file through the Pipeline
// Orchestrator, and updates both the Job and File Tracker rows with the
// outcome.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/photovault/internal/config"
	"github.com/your-org/photovault/internal/faces"
	"github.com/your-org/photovault/internal/geo"
	"github.com/your-org/photovault/internal/layout"
	"github.com/your-org/photovault/internal/layout/objectstore"
	"github.com/your-org/photovault/internal/models"
	"github.com/your-org/photovault/internal/objects"
	"github.com/your-org/photovault/internal/observability"
	"github.com/your-org/photovault/internal/pipeline"
	"github.com/your-org/photovault/internal/queue"
	"github.com/your-org/photovault/internal/storage"
)

// objectDetectorNumBoxes is the output row count of the YOLOv5-style
// 640x640 export this module targets (80x80 + 40x40 + 20x20 grid cells,
// 3 anchors each).
const objectDetectorNumBoxes = 25200

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting image processing worker", "workers", cfg.Queue.WorkerCount, "cpu_cores", runtime.NumCPU())

	ort.SetSharedLibraryPath(onnxLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Warn("init onnx runtime, object detection and internal embedding disabled", "error", err)
	} else {
		defer ort.DestroyEnvironment()
	}

	store, err := storage.New(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var archive objectstore.Store
	if cfg.Storage.Archive.Enabled {
		minioStore, err := objectstore.NewMinIOStore(cfg.Storage.Archive)
		if err != nil {
			slog.Error("connect to minio archive", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(context.Background()); err != nil {
			slog.Error("ensure archive bucket", "error", err)
			os.Exit(1)
		}
		archive = minioStore
	}
	layoutMgr := layout.NewManager(cfg.Storage.Root, archive)

	faceClient := faces.NewClient(cfg.Faces.BaseURL, cfg.Faces.DetectionKey, cfg.Faces.RecognitionKey,
		cfg.Faces.Timeout, cfg.Faces.MaxRetries)

	detector, embedder := loadVisionModels(cfg.Vision)
	if detector != nil {
		defer detector.Close()
	}
	if embedder != nil {
		defer embedder.Close()
	}

	cities, err := store.ListCities(context.Background())
	if err != nil {
		slog.Warn("load geo city reference table, geolocation disabled", "error", err)
	}
	var geoIdx *geo.Index
	if len(cities) > 0 {
		geoIdx = geo.NewIndex(cities)
	}

	pipe := pipeline.New(cfg, store, layoutMgr, faceClient, detector, embedder, geoIdx)

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	if err := producer.EnsureStream(context.Background(), models.JobImageProcessing); err != nil {
		slog.Error("ensure job stream", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := newJobHandler(store, pipe)
	if err := consumer.ConsumeJobs(ctx, models.JobImageProcessing, "image-workers", handler, cfg.Queue.WorkerCount); err != nil {
		slog.Error("start job consumer", "error", err)
		os.Exit(1)
	}

	go runMetricsServer(cfg.Server.MetricsPort)
	go reportQueueDepth(ctx, producer)
	go sweepStaleJobsLoop(ctx, store, cfg.Queue)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// newJobHandler wraps pipeline.Process with Job and File Tracker
// bookkeeping. The Pipeline Orchestrator itself only knows about paths
// and Images; completing the job's file_index row and jobs row is the
// worker's responsibility, not the orchestrator's.
func newJobHandler(store *storage.Store, pipe *pipeline.Pipeline) queue.JobHandler {
	return func(ctx context.Context, jobID string) error {
		id, err := uuid.Parse(jobID)
		if err != nil {
			return fmt.Errorf("parse job id %s: %w", jobID, err)
		}

		job, err := store.GetJob(ctx, id)
		if err != nil {
			return fmt.Errorf("load job %s: %w", jobID, err)
		}
		if job == nil {
			slog.Warn("job not found, dropping", "job_id", jobID)
			return nil
		}

		ran, err := store.MarkJobRunning(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("mark job running: %w", err)
		}
		if !ran {
			slog.Info("job no longer pending, skipping", "job_id", jobID, "status", job.Status)
			return nil
		}

		var payload models.ImageProcessingPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			_ = store.FinishJob(ctx, job.ID, models.JobFailed, err.Error())
			return nil
		}

		result, procErr := pipe.Process(ctx, payload.Path)
		if procErr != nil {
			_ = store.FailFile(ctx, payload.FileIndexID, procErr.Error())
			_ = store.FinishJob(ctx, job.ID, models.JobFailed, procErr.Error())
			return procErr
		}

		if err := store.CompleteFile(ctx, payload.FileIndexID, result.Image.ID); err != nil {
			slog.Error("complete file tracker entry", "file_index_id", payload.FileIndexID, "error", err)
		}
		if err := store.FinishJob(ctx, job.ID, models.JobSucceeded, ""); err != nil {
			slog.Error("finish job", "job_id", job.ID, "error", err)
		}

		slog.Info("processed file", "path", payload.Path, "outcome", result.Outcome, "image_id", result.Image.ID)
		return nil
	}
}

// loadVisionModels loads the optional ONNX object-detection and internal
// face-embedding models. Either (or both) may be absent in a deployment
// that hasn't provisioned models yet; the pipeline runs in degraded mode
// for the corresponding stage rather than failing to start.
func loadVisionModels(cfg config.VisionConfig) (*objects.Detector, *objects.Embedder) {
	newSessionOptions := func() (*ort.SessionOptions, error) {
		opts, err := ort.NewSessionOptions()
		if err != nil {
			return nil, err
		}
		if cfg.IntraOpThreads > 0 {
			if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
				opts.Destroy()
				return nil, err
			}
		}
		if cfg.InterOpThreads > 0 {
			if err := opts.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
				opts.Destroy()
				return nil, err
			}
		}
		return opts, nil
	}

	var detector *objects.Detector
	detPath := filepath.Join(cfg.ModelsDir, "detector.onnx")
	labels, labelErr := readLabels(filepath.Join(cfg.ModelsDir, "labels.txt"))
	if labelErr != nil {
		slog.Warn("load object detector labels, object detection disabled", "error", labelErr)
	} else {
		detOpts, err := newSessionOptions()
		if err != nil {
			slog.Warn("create detector session options, object detection disabled", "error", err)
		} else {
			det, err := objects.NewDetector(detPath, labels, objectDetectorNumBoxes, float32(cfg.ObjectConfidenceFloor), detOpts)
			detOpts.Destroy()
			if err != nil {
				slog.Warn("load object detector, object detection disabled", "path", detPath, "error", err)
			} else {
				detector = det
			}
		}
	}

	var embedder *objects.Embedder
	embPath := filepath.Join(cfg.ModelsDir, "embedder.onnx")
	emb, err := objects.NewEmbedder(embPath)
	if err != nil {
		slog.Warn("load internal face embedder, clustering support disabled", "path", embPath, "error", err)
	} else {
		embedder = emb
	}

	return detector, embedder
}

func readLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels found in %s", path)
	}
	return labels, nil
}

func runMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	addr := fmt.Sprintf(":%d", port)
	slog.Info("worker metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("metrics server error", "error", err)
	}
}

func reportQueueDepth(ctx context.Context, producer *queue.Producer) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := producer.QueueDepth(ctx, models.JobImageProcessing)
			if err == nil {
				observability.QueueDepth.WithLabelValues("image_processing").Set(float64(depth))
			}
		}
	}
}

func sweepStaleJobsLoop(ctx context.Context, store *storage.Store, cfg config.QueueConfig) {
	ticker := time.NewTicker(cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.SweepStaleJobs(ctx, cfg.Retention)
			if err != nil {
				slog.Error("sweep stale jobs", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("requeued stale jobs", "count", n)
			}
		}
	}
}

func onnxLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
