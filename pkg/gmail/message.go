package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	"github.com/jan-janssen/gmailsorter/pkg/htmltext"
	"github.com/jan-janssen/gmailsorter/pkg/mailheader"

	"google.golang.org/api/gmail/v1"
)

const (
	mimeTextPlain            = "text/plain"
	mimeTextHTML             = "text/html"
	mimeMultipartAlternative = "multipart/alternative"
)

var _ emaildomain.MessageSource = (*Message)(nil)

// Message reads the fields of a Gmail API message in full or metadata format.
type Message struct {
	msg     *gmail.Message
	content *string
}

// NewMessage validates the structural fields of msg and decodes its body.
func NewMessage(msg *gmail.Message) (*Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", emaildomain.ErrMalformedMessage)
	}
	if msg.Id == "" {
		return nil, fmt.Errorf("%w: missing id", emaildomain.ErrMalformedMessage)
	}
	if msg.ThreadId == "" {
		return nil, fmt.Errorf("%w: message %s has no threadId", emaildomain.ErrMalformedMessage, msg.Id)
	}
	if msg.Payload == nil || msg.Payload.Headers == nil {
		return nil, fmt.Errorf("%w: message %s has no payload headers", emaildomain.ErrMalformedMessage, msg.Id)
	}

	parts := msg.Payload.Parts
	if len(parts) == 0 {
		parts = []*gmail.MessagePart{msg.Payload}
	}
	content, err := partsContent(parts)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s: %v", emaildomain.ErrMalformedMessage, msg.Id, err)
	}

	return &Message{msg: msg, content: content}, nil
}

// Normalize converts a Gmail API message into the canonical record.
func Normalize(msg *gmail.Message) (*emaildomain.Message, error) {
	m, err := NewMessage(msg)
	if err != nil {
		return nil, err
	}
	return emaildomain.NewMessage(m), nil
}

func (m *Message) EmailID() string  { return m.msg.Id }
func (m *Message) ThreadID() string { return m.msg.ThreadId }

func (m *Message) LabelIDs() []string {
	if m.msg.LabelIds == nil {
		return []string{}
	}
	return append([]string(nil), m.msg.LabelIds...)
}

// From is nil when the header is missing or names more than one sender.
func (m *Message) From() *string {
	addrs := mailheader.SplitAddresses(m.header("From"))
	if len(addrs) != 1 {
		return nil
	}
	return &addrs[0]
}

func (m *Message) To() []string { return mailheader.SplitAddresses(m.header("To")) }
func (m *Message) Cc() []string { return mailheader.SplitAddresses(m.header("Cc")) }

func (m *Message) Subject() *string { return m.header("Subject") }

func (m *Message) Date() *time.Time {
	if d := m.header("Date"); d != nil {
		return mailheader.ParseDate(*d)
	}
	return nil
}

func (m *Message) Content() *string { return m.content }

// header returns the value of the first header called name.
func (m *Message) header(name string) *string {
	if v, ok := getHeader(m.msg.Payload.Headers, name); ok {
		return &v
	}
	return nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) (string, bool) {
	for _, header := range headers {
		if header != nil && header.Name == name {
			return header.Value, true
		}
	}
	return "", false
}

// partsContent picks the first text/plain part, else the first text/html part
// with markup stripped, else descends into the first multipart/alternative.
func partsContent(parts []*gmail.MessagePart) (*string, error) {
	if p := firstPart(parts, mimeTextPlain); p != nil {
		body, err := decodeBody(p)
		if err != nil {
			return nil, err
		}
		return &body, nil
	}
	if p := firstPart(parts, mimeTextHTML); p != nil {
		body, err := decodeBody(p)
		if err != nil {
			return nil, err
		}
		text := htmltext.Strip(body)
		return &text, nil
	}
	if p := firstPart(parts, mimeMultipartAlternative); p != nil {
		if len(p.Parts) == 0 {
			return nil, nil
		}
		return partsContent(p.Parts)
	}
	return nil, nil
}

func firstPart(parts []*gmail.MessagePart, mimeType string) *gmail.MessagePart {
	for _, p := range parts {
		if p != nil && p.MimeType == mimeType {
			return p
		}
	}
	return nil
}

// decodeBody returns the base64url decoded body data, or "" when absent.
func decodeBody(part *gmail.MessagePart) (string, error) {
	if part.Body == nil || part.Body.Data == "" {
		return "", nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	if err != nil {
		return "", fmt.Errorf("unable to decode body: %w", err)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}
