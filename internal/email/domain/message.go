package domain

import "time"

// Message is the canonical record of one email, independent of the provider
// format it was downloaded in.
type Message struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"thread_id"`
	Labels   []string   `json:"labels"`
	From     *string    `json:"from"`
	To       []string   `json:"to"`
	Cc       []string   `json:"cc"`
	Subject  *string    `json:"subject"`
	Body     *string    `json:"content"`
	Date     *time.Time `json:"date"`
	Deleted  bool       `json:"deleted"`
}

// MessageSource is a provider message that can be read field by field.
// Implementations must return nil for absent optional fields rather than
// empty strings, and empty slices rather than nil for absent lists.
type MessageSource interface {
	EmailID() string
	ThreadID() string
	LabelIDs() []string
	From() *string
	To() []string
	Cc() []string
	Subject() *string
	Date() *time.Time
	Content() *string
}

// NewMessage reads every field of src into a Message.
func NewMessage(src MessageSource) *Message {
	return &Message{
		ID:       src.EmailID(),
		ThreadID: src.ThreadID(),
		Labels:   src.LabelIDs(),
		From:     src.From(),
		To:       src.To(),
		Cc:       src.Cc(),
		Subject:  src.Subject(),
		Body:     src.Content(),
		Date:     src.Date(),
	}
}

// ToMap flattens the message using the column names of the local store.
func (m *Message) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":      m.ID,
		"threads": m.ThreadID,
		"labels":  m.Labels,
		"to":      m.To,
		"from":    m.From,
		"cc":      m.Cc,
		"subject": m.Subject,
		"content": m.Body,
		"date":    m.Date,
		"deleted": m.Deleted,
	}
}

// HasLabel reports whether labelID is attached to the message.
func (m *Message) HasLabel(labelID string) bool {
	for _, l := range m.Labels {
		if l == labelID {
			return true
		}
	}
	return false
}
