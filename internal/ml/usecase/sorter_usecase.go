package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	"github.com/jan-janssen/gmailsorter/internal/email/repository"
	emailusecase "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
	"github.com/jan-janssen/gmailsorter/internal/ml/encoding"
	mlrepo "github.com/jan-janssen/gmailsorter/internal/ml/repository"
	"github.com/jan-janssen/gmailsorter/pkg/config"
	"github.com/jan-janssen/gmailsorter/pkg/reconcile"
)

var (
	// ErrMultipleFilters is returned when the mailbox already has more than one filter.
	ErrMultipleFilters = errors.New("multiple filters exist already, so no new filter is created")
	// ErrFilterMismatch is returned when the single existing filter does not move all mail into the sorter label.
	ErrFilterMismatch = errors.New("a filter exists but it does not match the sorter filter")
	// ErrNoTrainingData is returned when there are no stored messages to train on.
	ErrNoTrainingData = errors.New("no stored messages to train on")
)

// sorterUsecase implements SorterUsecase interface
type sorterUsecase struct {
	emailRepo   repository.EmailRepository
	syncUsecase emailusecase.SyncUsecase
	modelRepo   mlrepo.ModelRepository
	trainer     mldomain.Trainer
	cfg         config.MLConfig
	sorterLabel string
}

// NewSorterUsecase creates a new instance of sorterUsecase
func NewSorterUsecase(emailRepo repository.EmailRepository, syncUsecase emailusecase.SyncUsecase, modelRepo mlrepo.ModelRepository, trainer mldomain.Trainer, cfg *config.Config) SorterUsecase {
	return &sorterUsecase{
		emailRepo:   emailRepo,
		syncUsecase: syncUsecase,
		modelRepo:   modelRepo,
		trainer:     trainer,
		cfg:         cfg.ML,
		sorterLabel: cfg.SorterLabel,
	}
}

// HyperparamsFromConfig reads the classifier settings.
func HyperparamsFromConfig(cfg config.MLConfig) mldomain.Hyperparams {
	return mldomain.Hyperparams{
		NEstimators: cfg.NEstimators,
		MaxFeatures: cfg.MaxFeatures,
		RandomState: cfg.RandomState,
		Bootstrap:   cfg.Bootstrap,
	}
}

// DefaultFitOptions are the training options of scheduled retrains.
func DefaultFitOptions(cfg config.MLConfig) FitOptions {
	return FitOptions{Params: HyperparamsFromConfig(cfg), IncludeDeleted: cfg.IncludeDeleted}
}

func (u *sorterUsecase) FitToDatabase(ctx context.Context, userID uint, opts FitOptions) (*TrainReport, error) {
	records, err := u.emailRepo.GetAllEmails(userID, opts.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored emails: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoTrainingData
	}

	x, y, err := encoding.EncodeTraining(records)
	if err != nil {
		return nil, err
	}
	models, err := FitModels(ctx, u.trainer, x, y, opts.Params, u.cfg.Workers)
	if err != nil {
		return nil, err
	}

	blobs := make(map[string][]byte, len(models))
	for label, model := range models {
		data, err := model.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize model %s: %w", label, err)
		}
		blobs[label] = data
	}
	if err := u.modelRepo.Store(userID, blobs, x.Columns); err != nil {
		return nil, fmt.Errorf("failed to store models: %w", err)
	}

	report := &TrainReport{UserID: userID, Rows: x.NumRows(), Features: len(x.Columns), Labels: reconcile.SortedKeys(models)}
	log.Printf("[Trainer] user %d: stored %d models over %d features", userID, len(report.Labels), report.Features)
	return report, nil
}

func (u *sorterUsecase) LoadModels(userID uint) (map[string]mldomain.Classifier, []string, error) {
	blobs, features, err := u.modelRepo.Load(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load models: %w", err)
	}
	models := make(map[string]mldomain.Classifier, len(blobs))
	for label, data := range blobs {
		model, err := u.trainer.Decode(data)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to decode model %s: %w", label, err)
		}
		models[label] = model
	}
	return models, features, nil
}

func (u *sorterUsecase) FilterMessagesFromServer(ctx context.Context, userID uint, transport emaildomain.MailTransport, label string, ratio float64) (*FilterReport, error) {
	report := &FilterReport{Label: label, Moved: map[string]string{}, Kept: []string{}, Failed: map[string]string{}}

	labels, err := transport.ListLabels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	sourceID, ok := labels[label]
	if !ok {
		return nil, fmt.Errorf("unknown label %q", label)
	}

	messages, err := u.syncUsecase.DownloadEmailsForLabel(ctx, transport, label, "")
	if err != nil {
		return nil, err
	}
	report.Candidates = len(messages)
	if len(messages) == 0 {
		return report, nil
	}

	models, features, err := u.LoadModels(userID)
	if err != nil {
		return nil, err
	}
	if len(models) == 0 || len(features) == 0 {
		log.Printf("[Sorter] user %d: no trained models, leaving %d messages in %s", userID, len(messages), label)
		for _, m := range messages {
			report.Kept = append(report.Kept, m.ID)
		}
		return report, nil
	}

	x, err := encoding.EncodeFeatures(messages, features)
	if err != nil {
		return nil, err
	}
	recommendations, err := Recommend(models, x, ratio)
	if err != nil {
		return nil, err
	}

	for _, id := range x.EmailIDs {
		target := recommendations[id]
		if target == nil || *target == sourceID {
			report.Kept = append(report.Kept, id)
			continue
		}
		if err := transport.ModifyLabels(ctx, id, []string{*target}, []string{sourceID}); err != nil {
			if errors.Is(err, emaildomain.ErrPermission) {
				return report, err
			}
			log.Printf("[Sorter] Failed to move %s to %s: %v", id, *target, err)
			report.Failed[id] = err.Error()
			continue
		}
		report.Moved[id] = *target
	}

	log.Printf("[Sorter] user %d: %d of %d messages moved out of %s", userID, len(report.Moved), report.Candidates, label)
	return report, nil
}

func (u *sorterUsecase) FilterForUser(ctx context.Context, userID uint) (int, error) {
	transport, err := u.syncUsecase.Transport(ctx, userID)
	if err != nil {
		return 0, err
	}
	report, err := u.FilterMessagesFromServer(ctx, userID, transport, u.sorterLabel, u.cfg.RecommendationRatio)
	if err != nil {
		return 0, err
	}
	return len(report.Moved), nil
}

func (u *sorterUsecase) UpdateAndFit(ctx context.Context, userID uint, transport emaildomain.MailTransport, quick bool) (*emailusecase.SyncReport, *TrainReport, error) {
	syncReport, err := u.syncUsecase.UpdateDatabase(ctx, userID, transport, emailusecase.SyncOptions{Quick: quick})
	if err != nil {
		return syncReport, nil, err
	}
	trainReport, err := u.FitToDatabase(ctx, userID, DefaultFitOptions(u.cfg))
	if err != nil {
		return syncReport, nil, err
	}
	return syncReport, trainReport, nil
}

func (u *sorterUsecase) CreateLabel(ctx context.Context, transport emaildomain.MailTransport, name, labelListVisibility, messageListVisibility string) (string, error) {
	labels, err := transport.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	if id, ok := labels[name]; ok {
		return id, nil
	}
	id, err := transport.CreateLabel(ctx, name, labelListVisibility, messageListVisibility)
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}
	log.Printf("[Sorter] Created label %s (%s)", name, id)
	return id, nil
}

func (u *sorterUsecase) CreateFilterMovingAllLabels(ctx context.Context, transport emaildomain.MailTransport, labelName string) (string, error) {
	labels, err := transport.ListLabels(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	labelID, ok := labels[labelName]
	if !ok {
		return "", fmt.Errorf("unknown label %q", labelName)
	}

	filters, err := transport.ListFilters(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list filters: %w", err)
	}
	switch len(filters) {
	case 0:
		return transport.CreateFilter(ctx, sorterCriteria(), sorterAction(labelID))
	case 1:
		if !isSorterFilter(filters[0], labelID) {
			return "", ErrFilterMismatch
		}
		return filters[0].ID, nil
	default:
		return "", ErrMultipleFilters
	}
}

func (u *sorterUsecase) EnsureSorterInbox(ctx context.Context, transport emaildomain.MailTransport, labelName string) InboxStatus {
	var status InboxStatus
	status.LabelID, status.LabelErr = u.CreateLabel(ctx, transport, labelName, emaildomain.LabelListHide, emaildomain.MessageListShow)
	if status.LabelErr != nil {
		status.FilterErr = status.LabelErr
		return status
	}
	status.FilterID, status.FilterErr = u.CreateFilterMovingAllLabels(ctx, transport, labelName)
	return status
}

func sorterCriteria() emaildomain.FilterCriteria {
	return emaildomain.FilterCriteria{From: "*", To: "*"}
}

func sorterAction(labelID string) emaildomain.FilterAction {
	return emaildomain.FilterAction{AddLabelIDs: []string{labelID}, RemoveLabelIDs: []string{"INBOX", "SPAM"}}
}

func isSorterFilter(f emaildomain.Filter, labelID string) bool {
	if f.Criteria.From != "*" || f.Criteria.To != "*" {
		return false
	}
	if len(f.Action.AddLabelIDs) != 1 || f.Action.AddLabelIDs[0] != labelID {
		return false
	}
	remove := f.Action.RemoveLabelIDs
	return len(remove) == 2 && contains(remove, "INBOX") && contains(remove, "SPAM")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
