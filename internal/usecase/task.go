package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/core/port"
	"github.com/taskvault/taskvault-api/internal/repository"
)

// ErrTaskNotFound covers both a missing task and one owned by another user,
// so the API does not reveal which ids exist.
var ErrTaskNotFound = errors.New("task not found")

// CreateTaskInput carries the fields accepted when creating a task.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
}

// UpdateTaskInput carries the mutable task fields. Nil pointers leave the
// current value in place.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	Priority    *domain.TaskPriority
	DueDate     *time.Time
	ClearDue    bool
}

// TaskService manages per-user tasks with ownership enforcement.
type TaskService struct {
	tasks  port.TaskRepository
	logger *zap.Logger
}

// NewTaskService constructs a TaskService instance.
func NewTaskService(tasks port.TaskRepository, log *zap.Logger) *TaskService {
	return &TaskService{tasks: tasks, logger: log}
}

// Create stores a new task owned by the user.
func (s *TaskService) Create(ctx context.Context, userID string, input CreateTaskInput) (*domain.Task, error) {
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	status := input.Status
	if status == "" {
		status = domain.TaskPending
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", input.Status)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("unknown priority %q", input.Priority)
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return &task, nil
}

// List returns the user's tasks narrowed by the filter.
func (s *TaskService) List(ctx context.Context, userID string, filter domain.TaskFilter) ([]domain.Task, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("unknown status %q", filter.Status)
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return nil, fmt.Errorf("unknown priority %q", filter.Priority)
	}

	tasks, err := s.tasks.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

// Get returns a single task if the user owns it.
func (s *TaskService) Get(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	return s.owned(ctx, userID, taskID)
}

// Update applies the provided changes to a task the user owns.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, input UpdateTaskInput) (*domain.Task, error) {
	task, err := s.owned(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if *input.Title == "" {
			return nil, fmt.Errorf("title is required")
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, fmt.Errorf("unknown status %q", *input.Status)
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.IsValid() {
			return nil, fmt.Errorf("unknown priority %q", *input.Priority)
		}
		task.Priority = *input.Priority
	}
	if input.ClearDue {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	task.UpdatedAt = time.Now().UTC()

	if err := s.tasks.Update(ctx, *task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	return task, nil
}

// Delete removes a task the user owns.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	if _, err := s.owned(ctx, userID, taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}

	return nil
}

func (s *TaskService) owned(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	if task.UserID != userID {
		return nil, ErrTaskNotFound
	}

	return task, nil
}
