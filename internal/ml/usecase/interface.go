package usecase

import (
	"context"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
)

// FitOptions select the training data and hyperparameters of a retrain.
type FitOptions struct {
	Params         mldomain.Hyperparams
	IncludeDeleted bool
}

// TrainReport summarises one retrain.
type TrainReport struct {
	UserID   uint     `json:"user_id"`
	Rows     int      `json:"rows"`
	Features int      `json:"features"`
	Labels   []string `json:"labels"`
}

// FilterReport summarises one filter run over a source label.
type FilterReport struct {
	Label      string            `json:"label"`
	Candidates int               `json:"candidates"`
	Moved      map[string]string `json:"moved"`
	Kept       []string          `json:"kept"`
	Failed     map[string]string `json:"failed"`
}

// InboxStatus is the result of making sure the sorter label and its
// catch-all filter exist.
type InboxStatus struct {
	LabelID   string
	FilterID  string
	LabelErr  error
	FilterErr error
}

// SorterUsecase trains the per-label models and moves mail with them.
type SorterUsecase interface {
	// FitToDatabase encodes every stored message, fits one model per user
	// label and replaces the stored models and schema.
	FitToDatabase(ctx context.Context, userID uint, opts FitOptions) (*TrainReport, error)
	// LoadModels returns the stored classifiers and their feature schema.
	LoadModels(userID uint) (map[string]mldomain.Classifier, []string, error)
	// FilterMessagesFromServer scores the messages under label and moves each
	// one with a confident recommendation out of label into the recommended one.
	FilterMessagesFromServer(ctx context.Context, userID uint, transport emaildomain.MailTransport, label string, ratio float64) (*FilterReport, error)
	// FilterForUser runs the filter over the configured sorter label and
	// returns the number of moved messages.
	FilterForUser(ctx context.Context, userID uint) (int, error)
	// UpdateAndFit syncs the mailbox and retrains with the configured options.
	UpdateAndFit(ctx context.Context, userID uint, transport emaildomain.MailTransport, quick bool) (*emailusecase.SyncReport, *TrainReport, error)
	// CreateLabel returns the id of label name, creating it when missing.
	CreateLabel(ctx context.Context, transport emaildomain.MailTransport, name, labelListVisibility, messageListVisibility string) (string, error)
	// CreateFilterMovingAllLabels makes sure a single filter moves all
	// incoming mail into labelName.
	CreateFilterMovingAllLabels(ctx context.Context, transport emaildomain.MailTransport, labelName string) (string, error)
	EnsureSorterInbox(ctx context.Context, transport emaildomain.MailTransport, labelName string) InboxStatus
}
