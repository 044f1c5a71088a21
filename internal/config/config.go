package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Storage    StorageConfig    `yaml:"storage"`
	Vision     VisionConfig     `yaml:"vision"`
	Faces      FacesConfig      `yaml:"faces"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Geo        GeoConfig        `yaml:"geo"`
	Queue      QueueConfig      `yaml:"queue"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Training   TrainingConfig   `yaml:"training"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig governs the ambient ops surface (/healthz, /metrics) shared
// by every binary in this module. There is no product HTTP API.
type ServerConfig struct {
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig configures the File Layout Manager's canonical tree and
// its optional archival mirror.
type StorageConfig struct {
	Root    string        `yaml:"root"`
	Archive ArchiveConfig `yaml:"archive"`
}

type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	ObjectConfidenceFloor float64 `yaml:"object_confidence_floor"`
	IntraOpThreads       int     `yaml:"intra_op_threads"`
	InterOpThreads       int     `yaml:"inter_op_threads"`
	MaxConcurrentInference int   `yaml:"max_concurrent_inference"`
}

// FacesConfig configures the external face-recognition service client
// (C5), shaped after the CompreFace API surface.
type FacesConfig struct {
	BaseURL           string        `yaml:"base_url"`
	DetectionKey      string        `yaml:"detection_key"`
	RecognitionKey    string        `yaml:"recognition_key"`
	MinSimilarity     float64       `yaml:"min_similarity"`
	ReviewSimilarity  float64       `yaml:"review_similarity"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
}

type ScreenshotConfig struct {
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// GeoConfig is currently empty: the Geolocator's distance bands and
// search radius are fixed by spec (see internal/geo), not configurable.
// The type is kept so Config.Geo remains a stable yaml key.
type GeoConfig struct{}

type QueueConfig struct {
	WorkerCount      int           `yaml:"worker_count"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	Retention        time.Duration `yaml:"retention"`
	AutoScanInterval time.Duration `yaml:"auto_scan_interval"`
	AutoScanBatch    int           `yaml:"auto_scan_batch"`
}

// DiscoveryConfig governs the Discovery Scanner's source-tree walk.
type DiscoveryConfig struct {
	SourceRoot     string        `yaml:"source_root"`
	Extensions     []string      `yaml:"extensions"`
	WorkerCount    int           `yaml:"worker_count"`
	QueueDepth     int           `yaml:"queue_depth"`
	RescanInterval time.Duration `yaml:"rescan_interval"`
}

type ClusteringConfig struct {
	Interval          time.Duration `yaml:"interval"`
	MinSimilarity     float64       `yaml:"min_similarity"`
	MinClusterSize    int           `yaml:"min_cluster_size"`
	CandidateWindow   time.Duration `yaml:"candidate_window"`
	ANNTopK           int           `yaml:"ann_top_k"`
}

// TrainingConfig governs the Training Coordinator's auto_train contract:
// a Person qualifies once it has at least MinFacesThreshold faces and
// hasn't been (re)trained within TrainingInterval.
type TrainingConfig struct {
	MinFacesThreshold int           `yaml:"min_faces_threshold"`
	TrainingInterval  time.Duration `yaml:"training_interval"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from a YAML file and applies environment variable
// overrides on top of it, then fills in defaults for anything still unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "/data/photos"
	}
	if cfg.Vision.ObjectConfidenceFloor == 0 {
		cfg.Vision.ObjectConfidenceFloor = 0.75
	}
	if cfg.Vision.IntraOpThreads == 0 {
		cfg.Vision.IntraOpThreads = 2
	}
	if cfg.Vision.InterOpThreads == 0 {
		cfg.Vision.InterOpThreads = 1
	}
	if cfg.Vision.MaxConcurrentInference == 0 {
		cfg.Vision.MaxConcurrentInference = 4
	}
	if cfg.Faces.Timeout == 0 {
		cfg.Faces.Timeout = 30 * time.Second
	}
	if cfg.Faces.MaxRetries == 0 {
		cfg.Faces.MaxRetries = 2
	}
	if cfg.Faces.MaxConcurrency == 0 {
		cfg.Faces.MaxConcurrency = 4
	}
	if cfg.Faces.MinSimilarity == 0 {
		cfg.Faces.MinSimilarity = 0.85
	}
	if cfg.Faces.ReviewSimilarity == 0 {
		cfg.Faces.ReviewSimilarity = 0.95
	}
	if cfg.Screenshot.ScoreThreshold == 0 {
		cfg.Screenshot.ScoreThreshold = 0.6
	}
	if cfg.Queue.WorkerCount == 0 {
		cfg.Queue.WorkerCount = 8
	}
	if cfg.Queue.CleanupInterval == 0 {
		cfg.Queue.CleanupInterval = 5 * time.Minute
	}
	if cfg.Queue.Retention == 0 {
		cfg.Queue.Retention = 7 * 24 * time.Hour
	}
	if cfg.Queue.AutoScanInterval == 0 {
		cfg.Queue.AutoScanInterval = 30 * time.Second
	}
	if cfg.Queue.AutoScanBatch == 0 {
		cfg.Queue.AutoScanBatch = 100
	}
	if cfg.Discovery.SourceRoot == "" {
		cfg.Discovery.SourceRoot = "/data/incoming"
	}
	if len(cfg.Discovery.Extensions) == 0 {
		cfg.Discovery.Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif", ".webp", ".heic", ".heif"}
	}
	if cfg.Discovery.WorkerCount == 0 {
		cfg.Discovery.WorkerCount = 4
	}
	if cfg.Discovery.QueueDepth == 0 {
		cfg.Discovery.QueueDepth = 256
	}
	if cfg.Discovery.RescanInterval == 0 {
		cfg.Discovery.RescanInterval = 10 * time.Minute
	}
	if cfg.Clustering.Interval == 0 {
		cfg.Clustering.Interval = 1 * time.Hour
	}
	if cfg.Clustering.MinSimilarity == 0 {
		cfg.Clustering.MinSimilarity = 0.7
	}
	if cfg.Clustering.MinClusterSize == 0 {
		cfg.Clustering.MinClusterSize = 3
	}
	if cfg.Clustering.CandidateWindow == 0 {
		cfg.Clustering.CandidateWindow = 90 * 24 * time.Hour
	}
	if cfg.Clustering.ANNTopK == 0 {
		cfg.Clustering.ANNTopK = 50
	}
	if cfg.Training.MinFacesThreshold == 0 {
		cfg.Training.MinFacesThreshold = 3
	}
	if cfg.Training.TrainingInterval == 0 {
		cfg.Training.TrainingInterval = 24 * time.Hour
	}
	if cfg.Training.MaxRetries == 0 {
		cfg.Training.MaxRetries = 3
	}
	if cfg.Training.RetryBackoff == 0 {
		cfg.Training.RetryBackoff = 2 * time.Second
	}
	if cfg.Training.PollInterval == 0 {
		cfg.Training.PollInterval = 15 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PM_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PM_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PM_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PM_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PM_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PM_STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("PM_ARCHIVE_ENDPOINT"); v != "" {
		cfg.Storage.Archive.Endpoint = v
	}
	if v := os.Getenv("PM_ARCHIVE_ACCESS_KEY"); v != "" {
		cfg.Storage.Archive.AccessKey = v
	}
	if v := os.Getenv("PM_ARCHIVE_SECRET_KEY"); v != "" {
		cfg.Storage.Archive.SecretKey = v
	}
	if v := os.Getenv("PM_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PM_FACES_BASE_URL"); v != "" {
		cfg.Faces.BaseURL = v
	}
	if v := os.Getenv("PM_FACES_DETECTION_KEY"); v != "" {
		cfg.Faces.DetectionKey = v
	}
	if v := os.Getenv("PM_FACES_RECOGNITION_KEY"); v != "" {
		cfg.Faces.RecognitionKey = v
	}
	if v := os.Getenv("PM_QUEUE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.WorkerCount = n
		}
	}
	if v := os.Getenv("PM_SOURCE_ROOT"); v != "" {
		cfg.Discovery.SourceRoot = v
	}
	if v := os.Getenv("PM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
