// Package gmailtest serves an in-memory subset of the Gmail REST API for tests.
package gmailtest

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	gmailpkg "github.com/jan-janssen/gmailsorter/pkg/gmail"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Modification records one call to messages.modify.
type Modification struct {
	ID     string
	Add    []string
	Remove []string
}

// Server is a fake Gmail mailbox. All exported fields may be changed by the
// test between calls; access goes through the mutex.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	messages map[string]*gmail.Message
	order    []string
	labels   []*gmail.Label
	filters  []*gmail.Filter
	nextID   int

	// PageSize is the number of stubs per search page.
	PageSize int
	// FailGet maps message ids to the HTTP status returned by messages.get.
	FailGet map[string]int
	// FailModify is returned by messages.modify when non-zero.
	FailModify int

	modifications []Modification
	gets          int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		messages: make(map[string]*gmail.Message),
		labels: []*gmail.Label{
			{Id: "INBOX", Name: "INBOX", Type: "system"},
			{Id: "SPAM", Name: "SPAM", Type: "system"},
			{Id: "TRASH", Name: "TRASH", Type: "system"},
			{Id: "UNREAD", Name: "UNREAD", Type: "system"},
		},
		PageSize: 2,
		FailGet:  make(map[string]int),
	}

	r := gin.New()
	users := r.Group("/gmail/v1/users/:userId")
	users.GET("/labels", s.handleListLabels)
	users.POST("/labels", s.handleCreateLabel)
	users.GET("/messages", s.handleListMessages)
	users.GET("/messages/:id", s.handleGetMessage)
	users.POST("/messages/:id/modify", s.handleModify)
	users.GET("/settings/filters", s.handleListFilters)
	users.POST("/settings/filters", s.handleCreateFilter)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Client returns a transport talking to the fake server.
func (s *Server) Client(t testing.TB) *gmailpkg.Client {
	t.Helper()
	srv, err := gmail.NewService(context.Background(),
		option.WithEndpoint(s.URL+"/"),
		option.WithHTTPClient(s.Server.Client()),
	)
	if err != nil {
		t.Fatalf("failed to create gmail service: %v", err)
	}
	return gmailpkg.NewClient(srv)
}

// Provider returns a MailProvider whose transports talk to the fake server.
func (s *Server) Provider() *gmailpkg.Service {
	return gmailpkg.NewService("test-client", "test-secret", option.WithEndpoint(s.URL+"/"))
}

// Token is a stored token that does not need a refresh.
func Token() *oauth2.Token {
	return &oauth2.Token{AccessToken: "test-access", RefreshToken: "test-refresh", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

// AddLabel registers a user label and returns its id.
func (s *Server) AddLabel(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLabelLocked(name)
}

func (s *Server) addLabelLocked(name string) string {
	s.nextID++
	id := fmt.Sprintf("Label_%d", s.nextID)
	s.labels = append(s.labels, &gmail.Label{Id: id, Name: name, Type: "user"})
	return id
}

// AddFilter registers an existing filter.
func (s *Server) AddFilter(f *gmail.Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.Id == "" {
		s.nextID++
		f.Id = fmt.Sprintf("filter_%d", s.nextID)
	}
	s.filters = append(s.filters, f)
}

func (s *Server) Filters() []*gmail.Filter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*gmail.Filter(nil), s.filters...)
}

// AddMessage stores msg. Later searches return messages in insertion order.
func (s *Server) AddMessage(msg *gmail.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[msg.Id]; !ok {
		s.order = append(s.order, msg.Id)
	}
	s.messages[msg.Id] = msg
}

func (s *Server) DeleteMessage(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetLabels replaces the labels of a stored message.
func (s *Server) SetLabels(id string, labels []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		msg.LabelIds = append([]string(nil), labels...)
	}
}

// Labels returns the current labels of a stored message.
func (s *Server) Labels(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := s.messages[id]; ok {
		return append([]string(nil), msg.LabelIds...)
	}
	return nil
}

func (s *Server) Modifications() []Modification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Modification(nil), s.modifications...)
}

// Gets counts messages.get calls, across all formats.
func (s *Server) Gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

// TextMessage builds a single part text/plain message.
func TextMessage(id, threadID string, labels []string, headers map[string]string, body string) *gmail.Message {
	msg := &gmail.Message{
		Id:       id,
		ThreadId: threadID,
		LabelIds: labels,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmail.MessagePartHeader{},
			Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
		},
	}
	for _, name := range []string{"From", "To", "Cc", "Subject", "Date"} {
		if v, ok := headers[name]; ok {
			msg.Payload.Headers = append(msg.Payload.Headers, &gmail.MessagePartHeader{Name: name, Value: v})
		}
	}
	return msg
}

func apiError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": gin.H{"code": code, "message": message}})
}

func (s *Server) handleListLabels(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, &gmail.ListLabelsResponse{Labels: s.labels})
}

func (s *Server) handleCreateLabel(c *gin.Context) {
	var req gmail.Label
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.labels {
		if l.Name == req.Name {
			apiError(c, http.StatusConflict, "Label name exists or conflicts")
			return
		}
	}
	id := s.addLabelLocked(req.Name)
	label := s.labels[len(s.labels)-1]
	label.LabelListVisibility = req.LabelListVisibility
	label.MessageListVisibility = req.MessageListVisibility
	c.JSON(http.StatusOK, &gmail.Label{Id: id, Name: req.Name})
}

func (s *Server) handleListMessages(c *gin.Context) {
	labelIDs := c.QueryArray("labelIds")
	start := 0
	if token := c.Query("pageToken"); token != "" {
		n, err := strconv.Atoi(token)
		if err != nil {
			apiError(c, http.StatusBadRequest, "invalid page token")
			return
		}
		start = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]*gmail.Message, 0, len(s.order))
	for _, id := range s.order {
		msg := s.messages[id]
		if hasAll(msg.LabelIds, labelIDs) {
			filtered = append(filtered, &gmail.Message{Id: msg.Id, ThreadId: msg.ThreadId})
		}
	}

	end := start + s.PageSize
	if s.PageSize <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	if start > end {
		start = end
	}
	resp := &gmail.ListMessagesResponse{
		Messages:           filtered[start:end],
		ResultSizeEstimate: int64(len(filtered)),
	}
	if end < len(filtered) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetMessage(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++

	if code, ok := s.FailGet[id]; ok {
		apiError(c, code, "injected failure")
		return
	}
	msg, ok := s.messages[id]
	if !ok {
		apiError(c, http.StatusNotFound, "Requested entity was not found.")
		return
	}

	switch c.Query("format") {
	case emaildomain.FormatMinimal:
		c.JSON(http.StatusOK, &gmail.Message{Id: msg.Id, ThreadId: msg.ThreadId, LabelIds: msg.LabelIds})
	case emaildomain.FormatMetadata:
		meta := *msg
		if msg.Payload != nil {
			payload := *msg.Payload
			payload.Body = nil
			payload.Parts = nil
			meta.Payload = &payload
		}
		c.JSON(http.StatusOK, &meta)
	case emaildomain.FormatRaw:
		c.JSON(http.StatusOK, &gmail.Message{Id: msg.Id, ThreadId: msg.ThreadId, LabelIds: msg.LabelIds, Raw: msg.Raw})
	default:
		c.JSON(http.StatusOK, msg)
	}
}

func (s *Server) handleModify(c *gin.Context) {
	var req gmail.ModifyMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailModify != 0 {
		apiError(c, s.FailModify, "injected failure")
		return
	}
	msg, ok := s.messages[id]
	if !ok {
		apiError(c, http.StatusNotFound, "Requested entity was not found.")
		return
	}

	s.modifications = append(s.modifications, Modification{ID: id, Add: req.AddLabelIds, Remove: req.RemoveLabelIds})
	labels := make([]string, 0, len(msg.LabelIds)+len(req.AddLabelIds))
	for _, l := range msg.LabelIds {
		if !contains(req.RemoveLabelIds, l) {
			labels = append(labels, l)
		}
	}
	for _, l := range req.AddLabelIds {
		if !contains(labels, l) {
			labels = append(labels, l)
		}
	}
	msg.LabelIds = labels
	c.JSON(http.StatusOK, &gmail.Message{Id: msg.Id, ThreadId: msg.ThreadId, LabelIds: labels})
}

func (s *Server) handleListFilters(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, &gmail.ListFiltersResponse{Filter: s.filters})
}

func (s *Server) handleCreateFilter(c *gin.Context) {
	var req gmail.Filter
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.Id = fmt.Sprintf("filter_%d", s.nextID)
	s.filters = append(s.filters, &req)
	c.JSON(http.StatusOK, &req)
}

func hasAll(have, want []string) bool {
	for _, w := range want {
		if !contains(have, w) {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, l := range list {
		if l == v {
			return true
		}
	}
	return false
}
