package repository

import emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"

// EmailRepository is the local store of synchronized messages, partitioned by user id.
type EmailRepository interface {
	// ListEmailIDs returns every stored email id for the user, deleted ones included.
	ListEmailIDs(userID uint) ([]string, error)
	// StoreMessage inserts a new message and its side rows in one transaction.
	// It reports false when the id was already stored.
	StoreMessage(userID uint, msg *emaildomain.Message) (bool, error)
	// MarkEmailsAsDeleted soft deletes the given ids and returns the number of rows changed.
	MarkEmailsAsDeleted(userID uint, emailIDs []string) (int64, error)
	// GetLabels returns the stored label ids of one message.
	GetLabels(userID uint, emailID string) ([]string, error)
	// UpdateLabels writes only the symmetric difference between the stored and the new labels.
	UpdateLabels(userID uint, emailID string, labels []string) (added, removed []string, err error)
	GetAllEmails(userID uint, includeDeleted bool) ([]*emaildomain.Message, error)
	GetEmailsByLabel(userID uint, labelID string, includeDeleted bool) ([]*emaildomain.Message, error)
	GetEmailsByFrom(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error)
	GetEmailsByTo(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error)
	GetEmailsByCc(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error)
	GetEmailsByThread(userID uint, threadID string, includeDeleted bool) ([]*emaildomain.Message, error)
}
