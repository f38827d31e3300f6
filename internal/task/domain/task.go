package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the state of one per-user task.
type Status string

const (
	StatusInit     Status = "init"
	StatusWait     Status = "wait"
	StatusProgress Status = "progress"
	StatusSuccess  Status = "success"
	StatusFail     Status = "fail"
)

// Name identifies the two tasks every user has.
type Name string

const (
	// NameUpdate syncs the mailbox into the local store and retrains.
	NameUpdate Name = "update"
	// NameFetch filters the sorter label with the trained models.
	NameFetch Name = "fetch"
)

// Names lists the task names in execution order.
var Names = []Name{NameUpdate, NameFetch}

// ErrInvalidTransition is returned when a status change skips the state machine.
var ErrInvalidTransition = errors.New("invalid task status transition")

// ErrUnknownMode is returned for a daemon mode outside all/update/fetch/select.
var ErrUnknownMode = errors.New("mode has to be one of all, update, fetch, select")

// Task is the job-status row of one (user, task name) pair.
type Task struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_task_user_name"`
	Name      Name      `json:"name" gorm:"type:varchar(32);not null;uniqueIndex:idx_task_user_name"`
	Status    Status    `json:"status" gorm:"type:varchar(16);not null"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func Models() []interface{} {
	return []interface{}{&Task{}}
}

var transitions = map[Status][]Status{
	StatusInit:     {StatusWait, StatusProgress},
	StatusWait:     {StatusInit},
	StatusProgress: {StatusSuccess, StatusFail},
	StatusSuccess:  {StatusProgress},
}

// CanTransition reports whether from may move to to. Any status may fall to
// fail (an auth failure hits both tasks) or be reset to init.
func CanTransition(from, to Status) bool {
	if to == StatusFail || to == StatusInit {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Runnable reports whether a task in status s is picked up by a run.
func Runnable(s Status) bool {
	return s == StatusInit || s == StatusSuccess
}

// Mode selects which tasks a daemon run executes.
type Mode string

const (
	ModeAll    Mode = "all"
	ModeUpdate Mode = "update"
	ModeFetch  Mode = "fetch"
	// ModeSelect runs only first-time updates plus every runnable fetch.
	ModeSelect Mode = "select"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeUpdate, ModeFetch, ModeSelect:
		return m, nil
	default:
		return "", fmt.Errorf("%w: got %q", ErrUnknownMode, s)
	}
}

// Selects reports whether mode runs the task name in status s.
func (m Mode) Selects(name Name, s Status) bool {
	switch m {
	case ModeAll:
		return Runnable(s)
	case ModeUpdate, ModeFetch:
		return Name(m) == name && Runnable(s)
	case ModeSelect:
		if name == NameUpdate {
			return s == StatusInit
		}
		return Runnable(s)
	}
	return false
}
