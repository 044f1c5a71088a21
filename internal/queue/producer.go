// Package queue implements the Job Queue's JetStream transport: one
// stream per job type, four priority-suffixed subjects per stream, and a
// fetch loop that drains subjects in priority order. Postgres
// (internal/storage) remains the source of truth for job status; this
// package only moves the dispatch signal.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/photovault/internal/models"
)

// prioritySuffixes lists every subject suffix in dispatch order, highest
// priority first. A consumer's fetch loop drains them in this order.
var prioritySuffixes = []string{"urgent", "high", "normal", "low"}

func subjectSuffix(p models.JobPriority) string {
	switch p {
	case models.PriorityCritical:
		return "urgent"
	case models.PriorityHigh:
		return "high"
	case models.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

func streamName(jobType models.JobType) string {
	return "JOBS_" + string(jobType)
}

func subjectBase(jobType models.JobType) string {
	return "jobs." + string(jobType)
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStream creates (or updates) the JetStream stream backing a job
// type, covering all four priority subjects under it. Retries up to 30
// times (1s apart) to tolerate NATS startup delay.
func (p *Producer) EnsureStream(ctx context.Context, jobType models.JobType) error {
	cfg := jetstream.StreamConfig{
		Name:        streamName(jobType),
		Subjects:    []string{subjectBase(jobType) + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1_000_000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Duplicates:  time.Minute,
		Description: fmt.Sprintf("dispatch signal for %s jobs", jobType),
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure job stream (retrying)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// Dispatch publishes a job's id on the subject matching its priority.
// The payload carries only the id; workers look up the authoritative row
// via storage.Store.GetJob before acting on it, so a redelivered or
// stale message never carries out-of-date state.
func (p *Producer) Dispatch(ctx context.Context, jobType models.JobType, jobID string, priority models.JobPriority) error {
	payload, err := json.Marshal(struct {
		JobID string `json:"job_id"`
	}{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal job dispatch: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", subjectBase(jobType), subjectSuffix(priority))
	if _, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(jobID)); err != nil {
		return fmt.Errorf("dispatch job %s: %w", jobID, err)
	}
	return nil
}

// QueueDepth returns the number of undelivered messages across all
// priority subjects of a job type's stream.
func (p *Producer) QueueDepth(ctx context.Context, jobType models.JobType) (uint64, error) {
	stream, err := p.js.Stream(ctx, streamName(jobType))
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
