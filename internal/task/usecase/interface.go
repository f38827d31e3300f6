package usecase

import (
	"context"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	"github.com/jan-janssen/gmailsorter/internal/task/domain"
)

// MailboxOpener builds an authorized transport for a stored user.
type MailboxOpener interface {
	Transport(ctx context.Context, userID uint) (emaildomain.MailTransport, error)
}

// Result is the outcome of one task run.
type Result struct {
	UserID uint          `json:"user_id"`
	Name   domain.Name   `json:"name"`
	Status domain.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
}

// RunReport lists the tasks a daemon pass executed.
type RunReport struct {
	Mode    domain.Mode `json:"mode"`
	Results []Result    `json:"results"`
}

// Failed counts the results that ended in fail.
func (r *RunReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == domain.StatusFail {
			n++
		}
	}
	return n
}

// TaskUsecase drives the per-user update and fetch tasks.
type TaskUsecase interface {
	// CreateTasksForNewUser adds update=init and fetch=wait unless present.
	CreateTasksForNewUser(userID uint) error

	// TasksToExecute groups the runnable user ids by task name. Names
	// without users are left out.
	TasksToExecute(mode domain.Mode) (map[domain.Name][]uint, error)

	// Run executes every selected task once, update before fetch.
	Run(ctx context.Context, mode domain.Mode) (*RunReport, error)

	// StatusDict reports the update/fetch statuses together with the state
	// of the sorter label and its filter.
	StatusDict(ctx context.Context, userID uint) (map[string]string, error)

	// Reset returns a user's tasks to the new-user state.
	Reset(userID uint) error

	SetNotifier(n emailusecase.Notifier)
}
