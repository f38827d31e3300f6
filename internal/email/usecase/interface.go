package usecase

import (
	"context"
	"errors"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
)

// ErrSyncInProgress is returned when a second sync for the same user starts
// while one is still running.
var ErrSyncInProgress = errors.New("sync already running for user")

// SyncOptions selects what UpdateDatabase fetches.
type SyncOptions struct {
	// Quick only ingests new messages and skips deletions and label updates.
	Quick bool
	// Labels limits the remote search to these label names. Empty means all mail.
	Labels []string
	// Format is the download format for new messages; empty uses the configured default.
	Format string
}

// EmailFilter selects stored messages. At most one lookup field is honoured,
// checked in the order Label, From, To, Cc, Thread.
type EmailFilter struct {
	Label          string
	From           string
	To             string
	Cc             string
	Thread         string
	IncludeDeleted bool
}

// SyncUsecase keeps the local store in step with the remote mailbox.
type SyncUsecase interface {
	// Transport opens the mailbox of a stored user. Refreshed tokens are saved back.
	Transport(ctx context.Context, userID uint) (emaildomain.MailTransport, error)
	// UpdateDatabase searches the remote, reconciles against the store and applies the plan.
	UpdateDatabase(ctx context.Context, userID uint, transport emaildomain.MailTransport, opts SyncOptions) (*SyncReport, error)
	// ApplySync performs the writes of plan. Per-id remote failures are reported, not returned.
	ApplySync(ctx context.Context, userID uint, transport emaildomain.MailTransport, plan SyncPlan, quick bool, format string) (*SyncReport, error)
	// SearchMessageIDs follows the page tokens of a search to the end.
	SearchMessageIDs(ctx context.Context, transport emaildomain.MailTransport, labelIDs []string, query string) ([]string, error)
	// DownloadEmailsForLabel normalizes every message under a label name without storing it.
	DownloadEmailsForLabel(ctx context.Context, transport emaildomain.MailTransport, label, format string) ([]*emaildomain.Message, error)
	GetEmails(userID uint, filter EmailFilter) ([]*emaildomain.Message, error)
}
