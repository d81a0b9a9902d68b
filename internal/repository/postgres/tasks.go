package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

var taskColumns = []string{
	"id",
	"user_id",
	"title",
	"description",
	"status",
	"priority",
	"due_date",
	"created_at",
	"updated_at",
}

// TaskRepository implements port.TaskRepository using PostgreSQL.
type TaskRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTaskRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewTaskRepository(exec pgExecutor) *TaskRepository {
	repo := &TaskRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create inserts a new task row.
func (r *TaskRepository) Create(ctx context.Context, task domain.Task) error {
	stmt, args, err := r.builder.Insert("todo.tasks").
		Columns(taskColumns...).
		Values(
			task.ID,
			task.UserID,
			task.Title,
			task.Description,
			task.Status,
			task.Priority,
			task.DueDate,
			task.CreatedAt,
			task.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert task sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

// GetByID retrieves a single task.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	stmt, args, err := r.builder.
		Select(taskColumns...).
		From("todo.tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select task sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	return task, nil
}

// ListByUser returns the user's tasks, newest first, narrowed by the filter.
func (r *TaskRepository) ListByUser(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	query := r.builder.
		Select(taskColumns...).
		From("todo.tasks").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.Priority != "" {
		query = query.Where(squirrel.Eq{"priority": filter.Priority})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"description": pattern},
		})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tasks sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	return tasks, nil
}

// Update persists the mutable task fields.
func (r *TaskRepository) Update(ctx context.Context, task domain.Task) error {
	stmt, args, err := r.builder.
		Update("todo.tasks").
		Set("title", task.Title).
		Set("description", task.Description).
		Set("status", task.Status).
		Set("priority", task.Priority).
		Set("due_date", task.DueDate).
		Set("updated_at", task.UpdatedAt).
		Where(squirrel.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update task sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes a task row.
func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Delete("todo.tasks").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete task sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		task        domain.Task
		description sql.NullString
		dueDate     *time.Time
	)

	if err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}

	task.Description = description.String
	task.DueDate = dueDate

	return &task, nil
}

var _ port.TaskRepository = (*TaskRepository)(nil)
