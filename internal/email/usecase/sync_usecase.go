package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	authrepo "github.com/jan-janssen/gmailsorter/internal/auth/repository"
	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	"github.com/jan-janssen/gmailsorter/internal/email/repository"

	"golang.org/x/oauth2"
)

// SyncFailure is one id that could not be fetched or stored in this pass.
type SyncFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// SyncReport summarises one ApplySync call.
type SyncReport struct {
	UserID        uint          `json:"user_id"`
	Quick         bool          `json:"quick"`
	New           int           `json:"new"`
	Changed       int           `json:"changed"`
	Deleted       int           `json:"deleted"`
	Stored        int           `json:"stored"`
	MarkedDeleted int64         `json:"marked_deleted"`
	LabelsAdded   int           `json:"labels_added"`
	LabelsRemoved int           `json:"labels_removed"`
	Malformed     []string      `json:"malformed"`
	Failed        []SyncFailure `json:"failed"`
}

func (r *SyncReport) fail(id string, err error) {
	r.Failed = append(r.Failed, SyncFailure{ID: id, Error: err.Error()})
}

// syncUsecase implements SyncUsecase interface
type syncUsecase struct {
	emailRepo      repository.EmailRepository
	userRepo       authrepo.UserRepository
	mailProvider   emaildomain.MailProvider
	downloadFormat string

	mu      sync.Mutex
	running map[uint]struct{}
}

// NewSyncUsecase creates a new instance of syncUsecase
func NewSyncUsecase(emailRepo repository.EmailRepository, userRepo authrepo.UserRepository, mailProvider emaildomain.MailProvider, downloadFormat string) SyncUsecase {
	if downloadFormat == "" {
		downloadFormat = emaildomain.FormatFull
	}
	return &syncUsecase{
		emailRepo:      emailRepo,
		userRepo:       userRepo,
		mailProvider:   mailProvider,
		downloadFormat: downloadFormat,
		running:        make(map[uint]struct{}),
	}
}

func (u *syncUsecase) Transport(ctx context.Context, userID uint) (emaildomain.MailTransport, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", userID)
	}
	return u.mailProvider.Transport(ctx, user.Token(), u.makeTokenUpdateCallback(userID))
}

func (u *syncUsecase) makeTokenUpdateCallback(userID uint) emaildomain.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		user, err := u.userRepo.FindByID(userID)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}
		user.SetToken(token)
		return u.userRepo.Update(user)
	}
}

// lock admits one writer per user.
func (u *syncUsecase) lock(userID uint) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, busy := u.running[userID]; busy {
		return false
	}
	u.running[userID] = struct{}{}
	return true
}

func (u *syncUsecase) unlock(userID uint) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.running, userID)
}

func (u *syncUsecase) UpdateDatabase(ctx context.Context, userID uint, transport emaildomain.MailTransport, opts SyncOptions) (*SyncReport, error) {
	if !u.lock(userID) {
		return nil, ErrSyncInProgress
	}
	defer u.unlock(userID)

	labelIDs, err := resolveLabels(ctx, transport, opts.Labels)
	if err != nil {
		return nil, err
	}

	remoteIDs, err := u.SearchMessageIDs(ctx, transport, labelIDs, "")
	if err != nil {
		return nil, err
	}
	localIDs, err := u.emailRepo.ListEmailIDs(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored emails: %w", err)
	}

	plan := Reconcile(remoteIDs, localIDs)
	report, err := u.ApplySync(ctx, userID, transport, plan, opts.Quick, opts.Format)
	if err != nil {
		return report, err
	}

	log.Printf("[Sync] user %d: %d new, %d changed, %d deleted (stored %d, malformed %d, failed %d)",
		userID, report.New, report.Changed, report.Deleted, report.Stored, len(report.Malformed), len(report.Failed))
	return report, nil
}

// ApplySync runs deletions, then label updates, then inserts. Every id is
// written on its own, so progress made before an error is kept.
func (u *syncUsecase) ApplySync(ctx context.Context, userID uint, transport emaildomain.MailTransport, plan SyncPlan, quick bool, format string) (*SyncReport, error) {
	if format == "" {
		format = u.downloadFormat
	}
	report := &SyncReport{
		UserID:    userID,
		Quick:     quick,
		New:       len(plan.New),
		Changed:   len(plan.Changed),
		Deleted:   len(plan.Deleted),
		Malformed: []string{},
		Failed:    []SyncFailure{},
	}

	if !quick {
		marked, err := u.emailRepo.MarkEmailsAsDeleted(userID, plan.Deleted)
		report.MarkedDeleted = marked
		if err != nil {
			return report, fmt.Errorf("failed to mark emails as deleted: %w", err)
		}

		for _, id := range plan.Changed {
			labels, err := transport.GetLabelIDs(ctx, id)
			if err != nil {
				log.Printf("[Sync] Failed to get labels of %s: %v", id, err)
				report.fail(id, err)
				continue
			}
			added, removed, err := u.emailRepo.UpdateLabels(userID, id, labels)
			if err != nil {
				return report, fmt.Errorf("failed to update labels of %s: %w", id, err)
			}
			report.LabelsAdded += len(added)
			report.LabelsRemoved += len(removed)
		}
	}

	for _, id := range plan.New {
		msg, err := transport.GetMessage(ctx, id, format, nil)
		if err != nil {
			if errors.Is(err, emaildomain.ErrMalformedMessage) {
				log.Printf("[Sync] Skipping malformed message %s: %v", id, err)
				report.Malformed = append(report.Malformed, id)
				continue
			}
			log.Printf("[Sync] Failed to download %s: %v", id, err)
			report.fail(id, err)
			continue
		}
		stored, err := u.emailRepo.StoreMessage(userID, msg)
		if err != nil {
			return report, fmt.Errorf("failed to store email %s: %w", id, err)
		}
		if stored {
			report.Stored++
		}
	}

	return report, nil
}

func (u *syncUsecase) SearchMessageIDs(ctx context.Context, transport emaildomain.MailTransport, labelIDs []string, query string) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		stubs, next, err := transport.Search(ctx, labelIDs, query, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to search messages: %w", err)
		}
		for _, s := range stubs {
			ids = append(ids, s.ID)
		}
		if next == "" {
			return ids, nil
		}
		pageToken = next
	}
}

func (u *syncUsecase) DownloadEmailsForLabel(ctx context.Context, transport emaildomain.MailTransport, label, format string) ([]*emaildomain.Message, error) {
	if format == "" {
		format = u.downloadFormat
	}
	labelIDs, err := resolveLabels(ctx, transport, []string{label})
	if err != nil {
		return nil, err
	}
	ids, err := u.SearchMessageIDs(ctx, transport, labelIDs, "")
	if err != nil {
		return nil, err
	}

	messages := make([]*emaildomain.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := transport.GetMessage(ctx, id, format, nil)
		if err != nil {
			if errors.Is(err, emaildomain.ErrMalformedMessage) {
				log.Printf("[Sync] Skipping malformed message %s: %v", id, err)
				continue
			}
			return nil, fmt.Errorf("failed to download %s: %w", id, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (u *syncUsecase) GetEmails(userID uint, filter EmailFilter) ([]*emaildomain.Message, error) {
	switch {
	case filter.Label != "":
		return u.emailRepo.GetEmailsByLabel(userID, filter.Label, filter.IncludeDeleted)
	case filter.From != "":
		return u.emailRepo.GetEmailsByFrom(userID, filter.From, filter.IncludeDeleted)
	case filter.To != "":
		return u.emailRepo.GetEmailsByTo(userID, filter.To, filter.IncludeDeleted)
	case filter.Cc != "":
		return u.emailRepo.GetEmailsByCc(userID, filter.Cc, filter.IncludeDeleted)
	case filter.Thread != "":
		return u.emailRepo.GetEmailsByThread(userID, filter.Thread, filter.IncludeDeleted)
	default:
		return u.emailRepo.GetAllEmails(userID, filter.IncludeDeleted)
	}
}

// resolveLabels translates label names into ids.
func resolveLabels(ctx context.Context, transport emaildomain.MailTransport, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	labels, err := transport.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := labels[name]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
