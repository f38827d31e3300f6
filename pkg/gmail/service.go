package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"
	"sync"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	"github.com/jan-janssen/gmailsorter/pkg/mime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const userID = "me"

// TokenUpdateFunc is a callback function that handles token updates
type TokenUpdateFunc = emaildomain.TokenUpdateFunc

var (
	_ emaildomain.MailProvider  = (*Service)(nil)
	_ emaildomain.MailTransport = (*Client)(nil)
)

// Service opens Gmail clients for stored user tokens.
type Service struct {
	clientID     string
	clientSecret string
	options      []option.ClientOption
}

type notifyTokenSource struct {
	mu       sync.Mutex
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to update token: %v", err)
		}
	}
	return t, nil
}

// NewService creates a provider for the OAuth client. Extra client options
// are appended to every Gmail service it builds.
func NewService(clientID, clientSecret string, opts ...option.ClientOption) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		options:      opts,
	}
}

// OAuthConfig returns the client configuration used for token refreshes.
func (s *Service) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}
}

// GetGmailService creates a Gmail service with the user's token. New tokens
// obtained by a refresh are passed to onTokenRefresh.
func (s *Service) GetGmailService(ctx context.Context, token *oauth2.Token, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil, fmt.Errorf("unable to create Gmail service: %w: no stored token", emaildomain.ErrTransientRemote)
	}

	wrappedSource := &notifyTokenSource{
		src:      s.OAuthConfig().TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, wrappedSource))}, s.options...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// Transport implements emaildomain.MailProvider.
func (s *Service) Transport(ctx context.Context, token *oauth2.Token, onTokenRefresh TokenUpdateFunc) (emaildomain.MailTransport, error) {
	srv, err := s.GetGmailService(ctx, token, onTokenRefresh)
	if err != nil {
		return nil, err
	}
	return NewClient(srv), nil
}

// Watch sets up push notifications for the user's mailbox
func (s *Service) Watch(ctx context.Context, token *oauth2.Token, topicName string, onTokenRefresh TokenUpdateFunc) (uint64, error) {
	srv, err := s.GetGmailService(ctx, token, onTokenRefresh)
	if err != nil {
		return 0, err
	}

	// Only one watch per mailbox is allowed; a missing one makes Stop fail, which is fine.
	_ = srv.Users.Stop(userID).Context(ctx).Do()

	// no label filter: the sorter filter skips the inbox
	req := &gmail.WatchRequest{TopicName: topicName}
	resp, err := srv.Users.Watch(userID, req).Context(ctx).Do()
	if err != nil {
		return 0, classifyError("unable to watch mailbox", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)
	return resp.HistoryId, nil
}

// Client is a MailTransport bound to one account.
type Client struct {
	srv *gmail.Service
}

func NewClient(srv *gmail.Service) *Client {
	return &Client{srv: srv}
}

func (c *Client) ListLabels(ctx context.Context) (map[string]string, error) {
	resp, err := c.srv.Users.Labels.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, classifyError("unable to retrieve labels", err)
	}
	labels := make(map[string]string, len(resp.Labels))
	for _, label := range resp.Labels {
		labels[label.Name] = label.Id
	}
	return labels, nil
}

func (c *Client) Search(ctx context.Context, labelIDs []string, query, pageToken string) ([]emaildomain.MessageStub, string, error) {
	call := c.srv.Users.Messages.List(userID).Context(ctx)
	if len(labelIDs) > 0 {
		call = call.LabelIds(labelIDs...)
	}
	if query != "" {
		call = call.Q(query)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, "", classifyError("unable to retrieve messages", err)
	}
	stubs := make([]emaildomain.MessageStub, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		stubs = append(stubs, emaildomain.MessageStub{ID: m.Id, ThreadID: m.ThreadId})
	}
	return stubs, resp.NextPageToken, nil
}

func (c *Client) GetMessage(ctx context.Context, id, format string, metadataHeaders []string) (*emaildomain.Message, error) {
	call := c.srv.Users.Messages.Get(userID, id).Format(format).Context(ctx)
	if format == emaildomain.FormatMetadata && len(metadataHeaders) > 0 {
		call = call.MetadataHeaders(metadataHeaders...)
	}
	msg, err := call.Do()
	if err != nil {
		return nil, classifyError("unable to retrieve message "+id, err)
	}

	if format == emaildomain.FormatRaw {
		return normalizeRaw(msg)
	}
	return Normalize(msg)
}

func normalizeRaw(msg *gmail.Message) (*emaildomain.Message, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(msg.Raw, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: message %s: unable to decode raw source: %v", emaildomain.ErrMalformedMessage, msg.Id, err)
	}
	src, err := mime.NewMessage(msg.Id, msg.ThreadId, msg.LabelIds, raw)
	if err != nil {
		return nil, err
	}
	return emaildomain.NewMessage(src), nil
}

func (c *Client) GetLabelIDs(ctx context.Context, id string) ([]string, error) {
	msg, err := c.srv.Users.Messages.Get(userID, id).Format(emaildomain.FormatMinimal).Context(ctx).Do()
	if err != nil {
		return nil, classifyError("unable to retrieve labels of message "+id, err)
	}
	if msg.LabelIds == nil {
		return []string{}, nil
	}
	return msg.LabelIds, nil
}

// ModifyLabels adds and/or removes labels from a message
func (c *Client) ModifyLabels(ctx context.Context, id string, addIDs, removeIDs []string) error {
	modifyReq := &gmail.ModifyMessageRequest{}
	if len(addIDs) > 0 {
		modifyReq.AddLabelIds = addIDs
	}
	if len(removeIDs) > 0 {
		modifyReq.RemoveLabelIds = removeIDs
	}

	if _, err := c.srv.Users.Messages.Modify(userID, id, modifyReq).Context(ctx).Do(); err != nil {
		return classifyError("unable to modify message labels", err)
	}
	return nil
}

func (c *Client) CreateLabel(ctx context.Context, name, labelListVisibility, messageListVisibility string) (string, error) {
	label, err := c.srv.Users.Labels.Create(userID, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   labelListVisibility,
		MessageListVisibility: messageListVisibility,
	}).Context(ctx).Do()
	if err != nil {
		return "", classifyError("unable to create label "+name, err)
	}
	return label.Id, nil
}

func (c *Client) ListFilters(ctx context.Context) ([]emaildomain.Filter, error) {
	resp, err := c.srv.Users.Settings.Filters.List(userID).Context(ctx).Do()
	if err != nil {
		return nil, classifyError("unable to list filters", err)
	}
	filters := make([]emaildomain.Filter, 0, len(resp.Filter))
	for _, f := range resp.Filter {
		filter := emaildomain.Filter{ID: f.Id}
		if f.Criteria != nil {
			filter.Criteria = emaildomain.FilterCriteria{From: f.Criteria.From, To: f.Criteria.To}
		}
		if f.Action != nil {
			filter.Action = emaildomain.FilterAction{AddLabelIDs: f.Action.AddLabelIds, RemoveLabelIDs: f.Action.RemoveLabelIds}
		}
		filters = append(filters, filter)
	}
	return filters, nil
}

func (c *Client) CreateFilter(ctx context.Context, criteria emaildomain.FilterCriteria, action emaildomain.FilterAction) (string, error) {
	f, err := c.srv.Users.Settings.Filters.Create(userID, &gmail.Filter{
		Criteria: &gmail.FilterCriteria{From: criteria.From, To: criteria.To},
		Action:   &gmail.FilterAction{AddLabelIds: action.AddLabelIDs, RemoveLabelIds: action.RemoveLabelIDs},
	}).Context(ctx).Do()
	if err != nil {
		return "", classifyError("unable to create filter", err)
	}
	return f.Id, nil
}
