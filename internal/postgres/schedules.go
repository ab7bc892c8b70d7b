package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firmbeat/recurflow/internal/domain"
)

// ScheduleRepository abstracts recurring-schedule persistence. All mutations
// of generation state are version-guarded: callers pass the version they
// read, and a stale version yields *domain.ConflictError.
type ScheduleRepository interface {
	Create(ctx context.Context, sched *domain.RecurringSchedule) error
	GetByID(ctx context.Context, id string) (*domain.RecurringSchedule, error)
	ListByFirm(ctx context.Context, firmID string, limit int) ([]*domain.RecurringSchedule, error)
	ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringSchedule, error)

	// Advance materializes task and moves the schedule forward in one
	// transaction: sets last_generated_at, increments occurrence_count and
	// writes the new next_generation_date, all conditional on the version
	// the caller read. The task row is only inserted when the guard holds,
	// which is what makes materialization at-most-once per occurrence.
	Advance(ctx context.Context, sched *domain.RecurringSchedule, task *domain.Task, next time.Time, generatedAt time.Time) error

	// Deactivate soft-disables the schedule, version-guarded.
	Deactivate(ctx context.Context, id string, expectedVersion int) error

	// SetActive toggles the active flag. When re-activating, nextGeneration
	// must carry the recomputed next occurrence date.
	SetActive(ctx context.Context, id string, active bool, nextGeneration *time.Time) error
}

type scheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository wraps a pgxpool with the ScheduleRepository interface.
func NewScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &scheduleRepo{pool: pool}
}

func (r *scheduleRepo) Create(ctx context.Context, sched *domain.RecurringSchedule) error {
	if sched.ID == "" {
		sched.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sched.CreatedAt.IsZero() {
		sched.CreatedAt = now
	}
	sched.UpdatedAt = now
	sched.Version = 1

	pattern, err := json.Marshal(sched.Pattern)
	if err != nil {
		return fmt.Errorf("marshal pattern for schedule %s: %w", sched.ID, err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO recurring_schedules
			(id, firm_id, template_id, client_id, assigned_to, pattern,
			 last_generated_at, next_generation_date, is_active, occurrence_count,
			 version, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		sched.ID, sched.FirmID, sched.TemplateID, sched.ClientID, sched.AssignedTo,
		pattern, sched.LastGeneratedAt, sched.NextGenerationDate, sched.IsActive,
		sched.OccurrenceCount, sched.Version, sched.CreatedAt, sched.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", sched.ID, err)
	}
	return nil
}

const scheduleColumns = `
	id, firm_id, template_id, client_id, assigned_to, pattern,
	last_generated_at, next_generation_date, is_active, occurrence_count,
	version, created_at, updated_at`

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*domain.RecurringSchedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM recurring_schedules WHERE id = $1`, id)
	sched, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.ScheduleNotFoundError{ScheduleID: id}
		}
		return nil, err
	}
	return sched, nil
}

func (r *scheduleRepo) ListByFirm(ctx context.Context, firmID string, limit int) ([]*domain.RecurringSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM recurring_schedules
		WHERE firm_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, firmID, limit)
	if err != nil {
		return nil, fmt.Errorf("list schedules for firm %s: %w", firmID, err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepo) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM recurring_schedules
		WHERE is_active = TRUE AND next_generation_date <= $1
		ORDER BY next_generation_date ASC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (r *scheduleRepo) Advance(ctx context.Context, sched *domain.RecurringSchedule, task *domain.Task, next time.Time, generatedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin advance for schedule %s: %w", sched.ID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE recurring_schedules
		SET last_generated_at = $1,
		    next_generation_date = $2,
		    occurrence_count = occurrence_count + 1,
		    version = version + 1,
		    updated_at = $1
		WHERE id = $3 AND version = $4 AND is_active = TRUE
	`, generatedAt, next, sched.ID, sched.Version)
	if err != nil {
		return fmt.Errorf("advance schedule %s: %w", sched.ID, err)
	}
	if tag.RowsAffected() == 0 {
		// Another runner advanced (or deactivated) this schedule first.
		return &domain.ConflictError{ScheduleID: sched.ID, Version: sched.Version}
	}

	if err := insertTask(ctx, tx, task); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit advance for schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (r *scheduleRepo) Deactivate(ctx context.Context, id string, expectedVersion int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE recurring_schedules
		SET is_active = FALSE, version = version + 1, updated_at = $1
		WHERE id = $2 AND version = $3 AND is_active = TRUE
	`, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("deactivate schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ConflictError{ScheduleID: id, Version: expectedVersion}
	}
	return nil
}

func (r *scheduleRepo) SetActive(ctx context.Context, id string, active bool, nextGeneration *time.Time) error {
	var tag pgconn.CommandTag
	var err error
	if nextGeneration != nil {
		tag, err = r.pool.Exec(ctx, `
			UPDATE recurring_schedules
			SET is_active = $1, next_generation_date = $2, version = version + 1, updated_at = $3
			WHERE id = $4
		`, active, *nextGeneration, time.Now().UTC(), id)
	} else {
		tag, err = r.pool.Exec(ctx, `
			UPDATE recurring_schedules
			SET is_active = $1, version = version + 1, updated_at = $2
			WHERE id = $3
		`, active, time.Now().UTC(), id)
	}
	if err != nil {
		return fmt.Errorf("set schedule %s active=%v: %w", id, active, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ScheduleNotFoundError{ScheduleID: id}
	}
	return nil
}

// scanSchedule reads a schedule row from any pgx row type.
func scanSchedule(row interface {
	Scan(...any) error
}) (*domain.RecurringSchedule, error) {
	var sched domain.RecurringSchedule
	var pattern []byte
	err := row.Scan(
		&sched.ID, &sched.FirmID, &sched.TemplateID, &sched.ClientID, &sched.AssignedTo,
		&pattern, &sched.LastGeneratedAt, &sched.NextGenerationDate, &sched.IsActive,
		&sched.OccurrenceCount, &sched.Version, &sched.CreatedAt, &sched.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(pattern, &sched.Pattern); err != nil {
		return nil, fmt.Errorf("unmarshal pattern for schedule %s: %w", sched.ID, err)
	}
	return &sched, nil
}

func collectSchedules(rows pgx.Rows) ([]*domain.RecurringSchedule, error) {
	var scheds []*domain.RecurringSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		scheds = append(scheds, sched)
	}
	return scheds, rows.Err()
}
