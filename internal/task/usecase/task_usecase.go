package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	mlusecase "github.com/jan-janssen/gmailsorter/internal/ml/usecase"
	"github.com/jan-janssen/gmailsorter/internal/task/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/repository"
	"github.com/jan-janssen/gmailsorter/pkg/config"
)

// Keys of the status dict besides the task names.
const (
	StatusKeyLabel  = "label"
	StatusKeyFilter = "filter"
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo    repository.TaskRepository
	mailbox     MailboxOpener
	sorter      mlusecase.SorterUsecase
	notifier    emailusecase.Notifier
	sorterLabel string
	ratio       float64
}

// NewTaskUsecase creates a new instance of taskUsecase
func NewTaskUsecase(taskRepo repository.TaskRepository, mailbox MailboxOpener, sorter mlusecase.SorterUsecase, cfg *config.Config) TaskUsecase {
	return &taskUsecase{
		taskRepo:    taskRepo,
		mailbox:     mailbox,
		sorter:      sorter,
		sorterLabel: cfg.SorterLabel,
		ratio:       cfg.ML.RecommendationRatio,
	}
}

func (u *taskUsecase) SetNotifier(n emailusecase.Notifier) {
	u.notifier = n
}

func (u *taskUsecase) CreateTasksForNewUser(userID uint) error {
	if err := u.taskRepo.CreateForUser(userID); err != nil {
		return fmt.Errorf("failed to create tasks for user %d: %w", userID, err)
	}
	return nil
}

func (u *taskUsecase) TasksToExecute(mode domain.Mode) (map[domain.Name][]uint, error) {
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	out := make(map[domain.Name][]uint)
	for _, name := range domain.Names {
		tasks, err := u.taskRepo.FindByName(name)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s tasks: %w", name, err)
		}
		for _, t := range tasks {
			if mode.Selects(name, t.Status) {
				out[name] = append(out[name], t.UserID)
			}
		}
	}
	return out, nil
}

func (u *taskUsecase) Run(ctx context.Context, mode domain.Mode) (*RunReport, error) {
	selected, err := u.TasksToExecute(mode)
	if err != nil {
		return nil, err
	}

	report := &RunReport{Mode: mode}
	for _, name := range domain.Names {
		for _, userID := range selected[name] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			// an earlier task of this pass may have failed the user
			current, err := u.taskRepo.Get(userID, name)
			if err != nil {
				return report, fmt.Errorf("failed to load %s task of user %d: %w", name, userID, err)
			}
			if current == nil || !domain.Runnable(current.Status) {
				continue
			}
			report.Results = append(report.Results, u.runTask(ctx, userID, name, current.Status))
		}
	}

	log.Printf("[Daemon] mode %s: ran %d tasks, %d failed", mode, len(report.Results), report.Failed())
	return report, nil
}

func (u *taskUsecase) runTask(ctx context.Context, userID uint, name domain.Name, start domain.Status) Result {
	res := Result{UserID: userID, Name: name}

	transport, err := u.open(ctx, userID)
	if err != nil {
		log.Printf("[Daemon] user %d: cannot open mailbox: %v", userID, err)
		for _, n := range domain.Names {
			u.setStatus(userID, n, domain.StatusFail)
		}
		res.Status, res.Error = domain.StatusFail, err.Error()
		return res
	}

	if err := u.transition(userID, name, domain.StatusProgress); err != nil {
		res.Status, res.Error = start, err.Error()
		return res
	}

	switch name {
	case domain.NameUpdate:
		err = u.runUpdate(ctx, userID, transport, start)
	case domain.NameFetch:
		err = u.runFetch(ctx, userID, transport)
	}

	switch {
	case errors.Is(err, emailusecase.ErrSyncInProgress):
		// another writer owns the mailbox; try again next pass
		log.Printf("[Daemon] user %d: %s skipped, sync already running", userID, name)
		u.setStatus(userID, name, start)
		res.Status = start
	case err != nil:
		log.Printf("[Daemon] user %d: %s failed: %v", userID, name, err)
		u.setStatus(userID, name, domain.StatusFail)
		res.Status, res.Error = domain.StatusFail, err.Error()
	default:
		u.setStatus(userID, name, domain.StatusSuccess)
		res.Status = domain.StatusSuccess
	}
	return res
}

// open builds the transport and checks it so that an expired grant fails
// here rather than halfway through a task.
func (u *taskUsecase) open(ctx context.Context, userID uint) (emaildomain.MailTransport, error) {
	transport, err := u.mailbox.Transport(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := transport.ListLabels(ctx); err != nil {
		return nil, err
	}
	return transport, nil
}

func (u *taskUsecase) runUpdate(ctx context.Context, userID uint, transport emaildomain.MailTransport, start domain.Status) error {
	_, _, err := u.sorter.UpdateAndFit(ctx, userID, transport, false)
	if err != nil && !errors.Is(err, mlusecase.ErrNoTrainingData) {
		return err
	}
	if start == domain.StatusInit {
		return u.transition(userID, domain.NameFetch, domain.StatusInit)
	}
	return nil
}

func (u *taskUsecase) runFetch(ctx context.Context, userID uint, transport emaildomain.MailTransport) error {
	report, err := u.sorter.FilterMessagesFromServer(ctx, userID, transport, u.sorterLabel, u.ratio)
	if err != nil {
		return err
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%w: %d messages could not be moved", emaildomain.ErrTransientRemote, len(report.Failed))
	}
	if moved := len(report.Moved); moved > 0 && u.notifier != nil {
		u.notifier.NotifyUser(ctx, userID, "Mail sorted",
			fmt.Sprintf("%d messages were moved out of %s", moved, u.sorterLabel),
			map[string]string{"type": "filter", "moved": strconv.Itoa(moved)})
	}
	return nil
}

// transition moves a task along the state machine.
func (u *taskUsecase) transition(userID uint, name domain.Name, to domain.Status) error {
	task, err := u.taskRepo.Get(userID, name)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("no %s task for user %d", name, userID)
	}
	if !domain.CanTransition(task.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", domain.ErrInvalidTransition, name, task.Status, to)
	}
	return u.taskRepo.SetStatus(userID, name, to)
}

func (u *taskUsecase) setStatus(userID uint, name domain.Name, status domain.Status) {
	if err := u.taskRepo.SetStatus(userID, name, status); err != nil {
		log.Printf("[Daemon] Failed to set %s=%s for user %d: %v", name, status, userID, err)
	}
}

func (u *taskUsecase) StatusDict(ctx context.Context, userID uint) (map[string]string, error) {
	tasks, err := u.taskRepo.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	dict := make(map[string]string, len(tasks)+2)
	for _, t := range tasks {
		dict[string(t.Name)] = string(t.Status)
	}

	transport, err := u.mailbox.Transport(ctx, userID)
	if err != nil {
		dict[StatusKeyLabel] = string(domain.StatusFail)
		dict[StatusKeyFilter] = string(domain.StatusFail)
		return dict, nil
	}
	inbox := u.sorter.EnsureSorterInbox(ctx, transport, u.sorterLabel)
	dict[StatusKeyLabel] = outcome(inbox.LabelErr)
	dict[StatusKeyFilter] = outcome(inbox.FilterErr)
	return dict, nil
}

func outcome(err error) string {
	if err != nil {
		return string(domain.StatusFail)
	}
	return string(domain.StatusSuccess)
}

func (u *taskUsecase) Reset(userID uint) error {
	if err := u.taskRepo.CreateForUser(userID); err != nil {
		return err
	}
	if err := u.taskRepo.SetStatus(userID, domain.NameUpdate, domain.StatusInit); err != nil {
		return err
	}
	return u.taskRepo.SetStatus(userID, domain.NameFetch, domain.StatusWait)
}
