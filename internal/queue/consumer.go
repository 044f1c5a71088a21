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

// DispatchMessage is the payload carried by a dispatched job message.
type DispatchMessage struct {
	JobID string `json:"job_id"`
}

// JobHandler processes one dispatched job id. A non-nil error naks the
// message so JetStream redelivers it (up to MaxDeliver); storage-level
// retry accounting lives in the jobs table, not in redelivery count.
type JobHandler func(ctx context.Context, jobID string) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
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

	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeJobs starts a fetch loop over a job type's stream that drains
// the urgent subject to exhaustion before looking at high, then normal,
// then low, on every tick — giving the priority tiers a strict ordering
// without needing four separate worker pools.
func (c *Consumer) ConsumeJobs(ctx context.Context, jobType models.JobType, consumerGroup string, handler JobHandler, workerCount int) error {
	stream, err := c.js.Stream(ctx, streamName(jobType))
	if err != nil {
		return fmt.Errorf("get stream %s: %w", streamName(jobType), err)
	}

	consumers := make(map[string]jetstream.Consumer, len(prioritySuffixes))
	for _, suffix := range prioritySuffixes {
		name := fmt.Sprintf("%s_%s", consumerGroup, suffix)
		cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
			Name:          name,
			Durable:       name,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       2 * time.Minute,
			MaxDeliver:    3,
			FilterSubject: fmt.Sprintf("%s.%s", subjectBase(jobType), suffix),
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", name, err)
		}
		consumers[suffix] = cons
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			drainedAny := false
			for _, suffix := range prioritySuffixes {
				for {
					batch, err := consumers[suffix].Fetch(workerCount, jetstream.FetchMaxWait(500*time.Millisecond))
					if err != nil {
						if ctx.Err() != nil {
							return
						}
						break
					}
					n := 0
					for msg := range batch.Messages() {
						n++
						select {
						case msgCh <- msg:
						case <-ctx.Done():
							return
						}
					}
					if n == 0 {
						break
					}
					drainedAny = true
				}
			}
			if !drainedAny {
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				var dm DispatchMessage
				if err := json.Unmarshal(msg.Data(), &dm); err != nil {
					slog.Error("malformed job dispatch message", "worker", workerID, "error", err)
					_ = msg.Term()
					continue
				}
				if err := handler(ctx, dm.JobID); err != nil {
					slog.Error("process job error", "worker", workerID, "job_id", dm.JobID, "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}(i)
	}

	slog.Info("job consumer started", "job_type", jobType, "group", consumerGroup, "workers", workerCount)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
