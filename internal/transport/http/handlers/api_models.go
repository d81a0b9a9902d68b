package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskvault/taskvault-api/internal/core/domain"
)

// Response is the uniform envelope every endpoint returns. Payload fields are
// flattened next to success/message.
type Response map[string]any

func respond(c *gin.Context, status int, message string, extra Response) {
	body := Response{
		"success": status < 400,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
}

// UserView is the user representation returned by the API. Secret fields are
// never part of it.
type UserView struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName,omitempty"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Country      string    `json:"country,omitempty"`
	Pincode      string    `json:"pincode,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"`
	Role         string    `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newUserView(user *domain.User) UserView {
	return UserView{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Email:        user.Email,
		Phone:        user.Phone,
		City:         user.Address.City,
		State:        user.Address.State,
		Country:      user.Address.Country,
		Pincode:      user.Address.Pincode,
		ProfileImage: user.ProfileImage,
		Role:         string(user.Role),
		IsVerified:   user.IsVerified,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

// TaskView is the task representation returned by the API.
type TaskView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newTaskView(task *domain.Task) TaskView {
	return TaskView{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		DueDate:     task.DueDate,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func newTaskViews(tasks []domain.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(&tasks[i]))
	}
	return views
}
