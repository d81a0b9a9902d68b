package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taskvault/taskvault-api/internal/core/domain"
	"github.com/taskvault/taskvault-api/internal/transport/http/middleware"
	"github.com/taskvault/taskvault-api/internal/usecase"
)

// TaskHandler serves the per-user task CRUD endpoints. Every route here sits
// behind RequireAuth, so the user id is always on the context.
type TaskHandler struct {
	tasks  *usecase.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *usecase.TaskService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: log}
}

// CreateTaskRequest is the task creation payload.
type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
}

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "title is required")
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), userID, usecase.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      domain.TaskStatus(req.Status),
		Priority:    domain.TaskPriority(req.Priority),
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Task created", Response{"task": newTaskView(task)})
}

// List returns the user's tasks, optionally filtered by status, priority, and
// a free-text search over title and description.
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	filter := domain.TaskFilter{
		Status:   domain.TaskStatus(c.Query("status")),
		Priority: domain.TaskPriority(c.Query("priority")),
		Search:   c.Query("search"),
	}

	tasks, err := h.tasks.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	respond(c, http.StatusOK, "Tasks fetched", Response{
		"tasks": newTaskViews(tasks),
		"count": len(tasks),
	})
}

func (h *TaskHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	respond(c, http.StatusOK, "Task fetched", Response{"task": newTaskView(task)})
}

// UpdateTaskRequest carries partial task updates. A literal null dueDate
// clears the due date, while omitting the field leaves it unchanged.
type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	ClearDue    bool       `json:"clearDueDate"`
}

func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid task payload")
		return
	}

	input := usecase.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		ClearDue:    req.ClearDue,
	}
	if req.Status != nil {
		status := domain.TaskStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := domain.TaskPriority(*req.Priority)
		input.Priority = &priority
	}

	task, err := h.tasks.Update(c.Request.Context(), userID, c.Param("id"), input)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	respond(c, http.StatusOK, "Task updated", Response{"task": newTaskView(task)})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.respondTaskError(c, err)
		return
	}

	respond(c, http.StatusOK, "Task deleted", nil)
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrTaskNotFound):
		respondError(c, http.StatusNotFound, "Task not found")
	default:
		// Validation failures from the service carry a user-facing message
		// and wrap nothing; anything wrapping a repository error is internal.
		if errors.Unwrap(err) == nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("task request failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
