package domain

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc func(token *oauth2.Token) error

// Download formats accepted by MailTransport.GetMessage.
const (
	FormatFull     = "full"
	FormatMetadata = "metadata"
	FormatMinimal  = "minimal"
	FormatRaw      = "raw"
)

// Label visibilities used when creating labels.
const (
	LabelListHide         = "labelHide"
	LabelListShow         = "labelShow"
	LabelListShowIfUnread = "labelShowIfUnread"
	MessageListHide       = "hide"
	MessageListShow       = "show"
)

// MessageStub is one entry of a search result page.
type MessageStub struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type FilterCriteria struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

type FilterAction struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

type Filter struct {
	ID       string         `json:"id"`
	Criteria FilterCriteria `json:"criteria"`
	Action   FilterAction   `json:"action"`
}

// MailTransport is the narrow view of a remote mailbox used by the sync
// engine and the sorter. One transport is bound to one account.
type MailTransport interface {
	// ListLabels maps label names to label ids.
	ListLabels(ctx context.Context) (map[string]string, error)
	// Search returns one page of message stubs and the token of the next page.
	Search(ctx context.Context, labelIDs []string, query, pageToken string) ([]MessageStub, string, error)
	// GetMessage downloads and normalizes one message. A message that cannot
	// be normalized yields an error wrapping ErrMalformedMessage.
	GetMessage(ctx context.Context, id, format string, metadataHeaders []string) (*Message, error)
	// GetLabelIDs returns only the current label ids of a message.
	GetLabelIDs(ctx context.Context, id string) ([]string, error)
	ModifyLabels(ctx context.Context, id string, addIDs, removeIDs []string) error
	CreateLabel(ctx context.Context, name, labelListVisibility, messageListVisibility string) (string, error)
	ListFilters(ctx context.Context) ([]Filter, error)
	CreateFilter(ctx context.Context, criteria FilterCriteria, action FilterAction) (string, error)
}

// MailProvider opens a transport for one account's OAuth token.
type MailProvider interface {
	Transport(ctx context.Context, token *oauth2.Token, onTokenRefresh TokenUpdateFunc) (MailTransport, error)
}
