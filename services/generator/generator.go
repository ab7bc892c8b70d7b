// Package generator implements the batch runner that materializes tasks
// from due recurring schedules.
package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/firmbeat/recurflow/internal/domain"
	"github.com/firmbeat/recurflow/internal/kafka"
	"github.com/firmbeat/recurflow/internal/postgres"
	redisstore "github.com/firmbeat/recurflow/internal/redis"
	"github.com/firmbeat/recurflow/internal/recur"
	"github.com/firmbeat/recurflow/pkg/retry"
	"github.com/firmbeat/recurflow/pkg/telemetry"
)

// opTimeout bounds the persistence work for a single schedule. A hung write
// counts as a failure and the schedule stays due for the next run.
const opTimeout = 5 * time.Second

// Runner scans due schedules and materializes one task per satisfied
// occurrence. Safe to run concurrently with other Runner instances: every
// advance is version-guarded, so a lost race skips without duplicating.
type Runner struct {
	schedules postgres.ScheduleRepository
	templates postgres.TemplateRepository
	producer  kafka.Producer        // nil disables event publishing
	leader    *redisstore.LeaderLock // nil disables leader election
	logger    *slog.Logger
}

// NewRunner constructs a Runner. producer and leader may be nil.
func NewRunner(
	schedules postgres.ScheduleRepository,
	templates postgres.TemplateRepository,
	producer kafka.Producer,
	leader *redisstore.LeaderLock,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		schedules: schedules,
		templates: templates,
		producer:  producer,
		leader:    leader,
		logger:    logger,
	}
}

// Run fires RunOnce on the cadence described by cronExpr (standard 5-field
// syntax) until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, cronExpr string) error {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("parse generation cadence %q: %w", cronExpr, err)
	}

	for {
		now := time.Now().UTC()
		wake := schedule.Next(now)
		r.logger.Info("next generation pass scheduled", slog.Time("at", wake))

		timer := time.NewTimer(wake.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if !r.tryLead(ctx) {
			continue
		}
		if _, err := r.RunOnce(ctx, time.Now().UTC()); err != nil {
			r.logger.Error("generation pass failed", slog.String("error", err.Error()))
		}
	}
}

// tryLead returns true when this instance should perform the pass. Without a
// configured lock every instance proceeds; correctness still holds via the
// version guard.
func (r *Runner) tryLead(ctx context.Context) bool {
	if r.leader == nil {
		return true
	}
	ok, err := r.leader.TryAcquire(ctx)
	if err != nil {
		r.logger.Error("leader election failed", slog.String("error", err.Error()))
		return false
	}
	return ok
}

// RunOnce performs one full generation pass over every schedule due at now.
// Per-schedule errors are collected in the result, never aborting the batch;
// cancellation is honored between schedules so a partial pass leaves
// processed schedules advanced and the rest untouched.
func (r *Runner) RunOnce(ctx context.Context, now time.Time) (*domain.GenerationResult, error) {
	ctx, span := otel.Tracer("generator").Start(ctx, "generator.run_once")
	defer span.End()
	start := time.Now()

	due, err := r.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	span.SetAttributes(attribute.Int("schedules.due", len(due)))

	result := &domain.GenerationResult{}
	for _, sched := range due {
		if ctx.Err() != nil {
			r.logger.Warn("generation pass interrupted",
				slog.Int("processed", len(result.Advanced)+len(result.Skipped)+len(result.Failures)),
				slog.Int("remaining", len(due)-len(result.Advanced)-len(result.Skipped)-len(result.Failures)),
			)
			break
		}
		r.processSchedule(ctx, sched, now, result)
	}

	telemetry.GeneratorRunDuration.Observe(time.Since(start).Seconds())
	r.logger.Info("generation pass complete",
		slog.Int("created", len(result.Created)),
		slog.Int("advanced", len(result.Advanced)),
		slog.Int("deactivated", len(result.Skipped)),
		slog.Int("failures", len(result.Failures)),
	)
	return result, nil
}

func (r *Runner) processSchedule(ctx context.Context, sched *domain.RecurringSchedule, now time.Time, result *domain.GenerationResult) {
	log := r.logger.With(
		slog.String("schedule_id", sched.ID),
		slog.String("firm_id", sched.FirmID),
	)

	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if sched.EndConditionMet(now) {
		if err := r.schedules.Deactivate(opCtx, sched.ID, sched.Version); err != nil {
			var conflict *domain.ConflictError
			if errors.As(err, &conflict) {
				telemetry.GeneratorConflicts.Inc()
				log.Info("deactivation lost to a concurrent runner")
				return
			}
			r.fail(log, result, sched.ID, "persistence", "deactivate: "+err.Error())
			return
		}
		telemetry.GeneratorSchedulesDeactivated.Inc()
		result.Skipped = append(result.Skipped, sched.ID)
		log.Info("schedule deactivated, end condition met",
			slog.Int("occurrence_count", sched.OccurrenceCount))
		return
	}

	tmpl, err := r.templates.GetByID(opCtx, sched.TemplateID)
	if err != nil {
		var notFound *domain.TemplateNotFoundError
		if errors.As(err, &notFound) {
			r.fail(log, result, sched.ID, "template_not_found", err.Error())
			return
		}
		r.fail(log, result, sched.ID, "persistence", "load template: "+err.Error())
		return
	}

	next, err := recur.Next(&sched.Pattern, sched.NextGenerationDate)
	if err != nil {
		// A pattern that passed validation at creation but is now malformed
		// means the stored row was tampered with or a migration broke it.
		r.fail(log, result, sched.ID, "invalid_pattern", err.Error())
		return
	}

	task := &domain.Task{
		ID:                  uuid.New().String(),
		FirmID:              sched.FirmID,
		TemplateID:          sched.TemplateID,
		ScheduleID:          sched.ID,
		ClientID:            sched.ClientID,
		AssignedTo:          sched.AssignedTo,
		Title:               tmpl.Title,
		Description:         tmpl.Description,
		Category:            tmpl.Category,
		DueDate:             sched.NextGenerationDate,
		IsRecurring:         true,
		RecurrencePatternID: sched.Pattern.ID,
		CreatedAt:           now,
	}

	if err := r.schedules.Advance(opCtx, sched, task, next, now); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			telemetry.GeneratorConflicts.Inc()
			log.Info("advance lost to a concurrent runner, no task created")
			return
		}
		r.fail(log, result, sched.ID, "persistence", "advance: "+err.Error())
		return
	}

	telemetry.GeneratorTasksCreated.WithLabelValues(sched.FirmID).Inc()
	result.Created = append(result.Created, task.ID)
	result.Advanced = append(result.Advanced, sched.ID)
	log.Info("task materialized",
		slog.String("task_id", task.ID),
		slog.Time("due_date", task.DueDate),
		slog.Time("next_generation", next),
	)

	r.publishEvent(ctx, task, log)
}

// publishEvent emits the generated-task event. Best-effort: the task and the
// advanced schedule are already committed, so a Kafka outage only costs
// notifications.
func (r *Runner) publishEvent(ctx context.Context, task *domain.Task, log *slog.Logger) {
	if r.producer == nil {
		return
	}
	event := kafka.TaskGeneratedEvent{
		TaskID:     task.ID,
		ScheduleID: task.ScheduleID,
		FirmID:     task.FirmID,
		Title:      task.Title,
		AssignedTo: task.AssignedTo,
		DueDate:    task.DueDate,
	}
	if task.ClientID != nil {
		event.ClientID = *task.ClientID
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("marshal task event", slog.String("error", err.Error()))
		return
	}

	err = retry.Do(ctx, retry.Config{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}, func() error {
		return r.producer.Publish(ctx, kafka.TopicTaskGenerated, task.ID, payload)
	})
	if err != nil {
		log.Error("publish task event", slog.String("error", err.Error()))
	}
}

func (r *Runner) fail(log *slog.Logger, result *domain.GenerationResult, scheduleID, reason, detail string) {
	telemetry.GeneratorFailures.WithLabelValues(reason).Inc()
	result.Failures = append(result.Failures, domain.GenerationFailure{
		ScheduleID: scheduleID,
		Reason:     detail,
	})
	log.Error("schedule skipped", slog.String("reason", reason), slog.String("detail", detail))
}
