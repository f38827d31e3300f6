package repository

import "github.com/jan-janssen/gmailsorter/internal/task/domain"

// TaskRepository stores the per-user job statuses.
type TaskRepository interface {
	// CreateForUser adds update=init and fetch=wait for a user, leaving
	// existing rows untouched.
	CreateForUser(userID uint) error

	// Get returns nil when the user has no such task.
	Get(userID uint, name domain.Name) (*domain.Task, error)

	FindByUserID(userID uint) ([]*domain.Task, error)

	FindByName(name domain.Name) ([]*domain.Task, error)

	// SetStatus overwrites the status and stamps the date.
	SetStatus(userID uint, name domain.Name, status domain.Status) error
}
