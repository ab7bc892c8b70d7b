package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/firmbeat/recurflow/internal/domain"
)

// NewPool creates a pgxpool and verifies connectivity.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// TemplateRepository abstracts task template persistence.
type TemplateRepository interface {
	Create(ctx context.Context, tmpl *domain.TaskTemplate) error
	GetByID(ctx context.Context, id string) (*domain.TaskTemplate, error)
}

// TaskRepository abstracts generated-task persistence outside the advance
// transaction (reads, manual inserts).
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]*domain.Task, error)
}

type templateRepo struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository wraps a pgxpool with the TemplateRepository interface.
func NewTemplateRepository(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepo{pool: pool}
}

func (r *templateRepo) Create(ctx context.Context, tmpl *domain.TaskTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.New().String()
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_templates
			(id, firm_id, title, description, category, subtasks, price_paise, is_payable, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		tmpl.ID, tmpl.FirmID, tmpl.Title, tmpl.Description, tmpl.Category,
		tmpl.Subtasks, tmpl.PricePaise, tmpl.IsPayable, tmpl.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create template %s: %w", tmpl.ID, err)
	}
	return nil
}

func (r *templateRepo) GetByID(ctx context.Context, id string) (*domain.TaskTemplate, error) {
	var tmpl domain.TaskTemplate
	err := r.pool.QueryRow(ctx, `
		SELECT id, firm_id, title, description, category, subtasks, price_paise, is_payable, created_at
		FROM task_templates
		WHERE id = $1
	`, id).Scan(
		&tmpl.ID, &tmpl.FirmID, &tmpl.Title, &tmpl.Description, &tmpl.Category,
		&tmpl.Subtasks, &tmpl.PricePaise, &tmpl.IsPayable, &tmpl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.TemplateNotFoundError{TemplateID: id}
		}
		return nil, fmt.Errorf("get template %s: %w", id, err)
	}
	return &tmpl, nil
}

type taskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepository wraps a pgxpool with the TaskRepository interface.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepo{pool: pool}
}

func (r *taskRepo) Create(ctx context.Context, task *domain.Task) error {
	return insertTask(ctx, r.pool, task)
}

func (r *taskRepo) ListBySchedule(ctx context.Context, scheduleID string, limit int) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, firm_id, template_id, schedule_id, client_id, assigned_to, title,
		       description, category, due_date, is_recurring, recurrence_pattern_id, created_at
		FROM tasks
		WHERE schedule_id = $1
		ORDER BY due_date DESC
		LIMIT $2
	`, scheduleID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks for schedule %s: %w", scheduleID, err)
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		var task domain.Task
		if err := rows.Scan(
			&task.ID, &task.FirmID, &task.TemplateID, &task.ScheduleID, &task.ClientID,
			&task.AssignedTo, &task.Title, &task.Description, &task.Category,
			&task.DueDate, &task.IsRecurring, &task.RecurrencePatternID, &task.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// execer covers both *pgxpool.Pool and pgx.Tx so task inserts can run inside
// the schedule-advance transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertTask(ctx context.Context, db execer, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO tasks
			(id, firm_id, template_id, schedule_id, client_id, assigned_to, title,
			 description, category, due_date, is_recurring, recurrence_pattern_id, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		task.ID, task.FirmID, task.TemplateID, task.ScheduleID, task.ClientID,
		task.AssignedTo, task.Title, task.Description, task.Category,
		task.DueDate, task.IsRecurring, task.RecurrencePatternID, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create task %s: %w", task.ID, err)
	}
	return nil
}
