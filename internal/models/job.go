package models

import (
	"time"

	"github.com/google/uuid"
)

// JobPriority orders dispatch within the Job Queue. Higher values are
// drained first; within a priority, jobs are FIFO.
type JobPriority int

const (
	PriorityLow JobPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p JobPriority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobRunning    JobStatus = "running"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// JobType identifies the operation a Job performs. image_processing is the
// only type the Pipeline Orchestrator consumes; the others exist so the
// same queue and worker pool carry maintenance work.
type JobType string

const (
	JobImageProcessing JobType = "image_processing"
	JobClusterRebuild  JobType = "cluster_rebuild"
	JobTraining        JobType = "training"
)

// ImageProcessingPayload is the JSON payload of a JobImageProcessing job:
// the File Tracker entry the Auto-Scanner Loop claimed on the worker's
// behalf.
type ImageProcessingPayload struct {
	FileIndexID uuid.UUID `json:"file_index_id"`
	Path        string    `json:"path"`
}

// ClusterRebuildPayload is the JSON payload of a JobClusterRebuild job.
type ClusterRebuildPayload struct {
	Reason string `json:"reason"`
}

// TrainingPayload is the JSON payload of a JobTraining job: one person's
// enrollment against the external recognition service.
type TrainingPayload struct {
	PersonID uuid.UUID `json:"person_id"`
}

// Job is one unit of dispatchable work tracked in the Job Queue.
type Job struct {
	ID          uuid.UUID
	Type        JobType
	Priority    JobPriority
	Payload     []byte // JSON-encoded, type-specific
	Status      JobStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// FileIndexState is the state machine driving C11's File Tracker.
type FileIndexState string

const (
	FileStatePending    FileIndexState = "pending"
	FileStateProcessing FileIndexState = "processing"
	FileStateCompleted  FileIndexState = "completed"
	FileStateFailed     FileIndexState = "failed"
)

// FileIndexEntry tracks the discovery and processing lifecycle of one
// source-tree path, independent of whether it has produced an Image yet.
type FileIndexEntry struct {
	ID          uuid.UUID
	Path        string
	State       FileIndexState
	ImageID     *uuid.UUID
	Attempts    int
	LastError   string
	ClaimedAt   *time.Time
	DiscoveredAt time.Time
	UpdatedAt   time.Time
}
