package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowbot-io/flowbot/pkg/eventbus"
	"github.com/flowbot-io/flowbot/pkg/events"
	"github.com/flowbot-io/flowbot/pkg/models"
	"github.com/flowbot-io/flowbot/pkg/persistence"
)

const DefaultWaitingTTL = 24 * time.Hour

// Janitor expires executions that have been waiting for user input longer
// than the configured TTL. Without it, abandoned conversations would block
// workflow deletion forever.
type Janitor struct {
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	ttl        time.Duration
	schedule   string
	cron       *cron.Cron
	logger     *slog.Logger
}

func NewJanitor(
	logger *slog.Logger,
	executions persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	ttl time.Duration,
) *Janitor {
	if ttl <= 0 {
		ttl = DefaultWaitingTTL
	}

	return &Janitor{
		executions: executions,
		publisher:  publisher,
		ttl:        ttl,
		schedule:   "@every 1m",
		logger:     logger.With("module", "execution_janitor"),
	}
}

func (j *Janitor) Start(ctx context.Context) error {
	j.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := j.cron.AddFunc(j.schedule, func() {
		j.Reap(ctx)
	})
	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(ctx, "Janitor started", "ttl", j.ttl.String(), "schedule", j.schedule)

	return nil
}

func (j *Janitor) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Reap fails every execution whose input wait began before now-ttl. Each
// expiry is persisted and published individually so one bad record does not
// stall the sweep.
func (j *Janitor) Reap(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.ttl)

	expired, err := j.executions.FindExpiredWaiting(ctx, cutoff)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to find expired executions", "error", err)

		return
	}

	for _, execution := range expired {
		now := time.Now().UTC()

		waitingSince := execution.StartedAt
		if execution.WaitingSince != nil {
			waitingSince = *execution.WaitingSince
		}

		execution.Status = models.ExecutionStatusError
		execution.Error = "input wait expired"
		execution.WaitingForInputType = ""
		execution.WaitingSince = nil
		execution.CompletedAt = &now

		if err := j.executions.Save(ctx, execution); err != nil {
			j.logger.ErrorContext(ctx, "Failed to expire execution",
				"execution_id", execution.ID, "error", err)

			continue
		}

		if j.publisher != nil {
			event := events.ExecutionExpired{
				BaseEvent: events.NewBaseEvent(events.ExecutionExpiredEvent,
					execution.ChatbotID, execution.WorkflowID, execution.ID),
				NodeID:    execution.CurrentNodeID,
				WaitedFor: now.Sub(waitingSince).String(),
				StartedAt: execution.StartedAt,
			}
			if err := j.publisher.Publish(ctx, execution.ID, event); err != nil {
				j.logger.WarnContext(ctx, "Failed to publish expiry event",
					"execution_id", execution.ID, "error", err)
			}
		}

		j.logger.InfoContext(ctx, "Expired waiting execution",
			"execution_id", execution.ID, "waited_for", now.Sub(waitingSince).String())
	}
}
