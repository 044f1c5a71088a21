package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesDiscovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "files_discovered_total",
		Help:      "Total number of source-tree files discovered by the scanner",
	})

	ImagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "images_processed_total",
		Help:      "Total number of images processed by the pipeline, by outcome",
	}, []string{"outcome"})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected by the external recognition service",
	})

	ObjectsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "objects_detected_total",
		Help:      "Total number of objects detected by the local ML model",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pm",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of individual pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "pm",
		Name:      "queue_depth",
		Help:      "Number of pending jobs in the job queue, by job type",
	}, []string{"job_type"})

	WorkerPoolActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pm",
		Name:      "worker_pool_active",
		Help:      "Number of worker pool goroutines currently processing a job",
	})

	ClustersFormed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pm",
		Name:      "face_clusters",
		Help:      "Number of face clusters produced by the most recent clustering pass",
	})

	TrainingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pm",
		Name:      "training_attempts_total",
		Help:      "Total number of face enrollment attempts, by outcome",
	}, []string{"outcome"})
)
