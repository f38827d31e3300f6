// Package mime reads RFC 822 sources, as returned by Gmail for format=raw,
// into the canonical message record.
package mime

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	"github.com/jan-janssen/gmailsorter/pkg/htmltext"
	"github.com/jan-janssen/gmailsorter/pkg/mailheader"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	mimeTextPlain            = "text/plain"
	mimeTextHTML             = "text/html"
	mimeMultipartAlternative = "multipart/alternative"
)

var _ emaildomain.MessageSource = (*Message)(nil)

// Message is a parsed RFC 822 message. Identity and labels are not part of
// the source and come from the provider envelope.
type Message struct {
	id       string
	threadID string
	labelIDs []string
	header   mail.Header
	content  *string
}

// part is one node of the MIME tree with its decoded body.
type part struct {
	mediaType string
	body      []byte
	children  []*part
}

// NewMessage parses raw. The id and thread id are mandatory.
func NewMessage(id, threadID string, labelIDs []string, raw []byte) (*Message, error) {
	if id == "" || threadID == "" {
		return nil, fmt.Errorf("%w: raw message without id or threadId", emaildomain.ErrMalformedMessage)
	}

	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: message %s: %v", emaildomain.ErrMalformedMessage, id, err)
	}
	root, err := readPart(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s: %v", emaildomain.ErrMalformedMessage, id, err)
	}

	parts := root.children
	if len(parts) == 0 {
		parts = []*part{root}
	}

	if labelIDs == nil {
		labelIDs = []string{}
	}
	return &Message{
		id:       id,
		threadID: threadID,
		labelIDs: labelIDs,
		header:   mail.Header{Header: entity.Header},
		content:  partsContent(parts),
	}, nil
}

// readPart loads the whole tree below e. Bodies are transfer and charset
// decoded.
func readPart(e *message.Entity) (*part, error) {
	mediaType, _, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = mimeTextPlain
	}
	p := &part{mediaType: mediaType}

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return nil, err
			}
			c, err := readPart(child)
			if err != nil {
				return nil, err
			}
			p.children = append(p.children, c)
		}
		return p, nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, err
	}
	p.body = body
	return p, nil
}

// partsContent picks the first text/plain part, else the first text/html part
// with markup stripped, else descends into the first multipart/alternative.
func partsContent(parts []*part) *string {
	if p := firstPart(parts, mimeTextPlain); p != nil {
		s := strings.ToValidUTF8(string(p.body), "\uFFFD")
		return &s
	}
	if p := firstPart(parts, mimeTextHTML); p != nil {
		s := htmltext.Strip(strings.ToValidUTF8(string(p.body), "\uFFFD"))
		return &s
	}
	if p := firstPart(parts, mimeMultipartAlternative); p != nil {
		if len(p.children) == 0 {
			return nil
		}
		return partsContent(p.children)
	}
	return nil
}

func firstPart(parts []*part, mediaType string) *part {
	for _, p := range parts {
		if p.mediaType == mediaType {
			return p
		}
	}
	return nil
}

func (m *Message) EmailID() string    { return m.id }
func (m *Message) ThreadID() string   { return m.threadID }
func (m *Message) LabelIDs() []string { return m.labelIDs }

// From is nil when the header is missing or names more than one sender.
func (m *Message) From() *string {
	addrs := mailheader.SplitAddresses(m.text("From"))
	if len(addrs) != 1 {
		return nil
	}
	return &addrs[0]
}

func (m *Message) To() []string { return mailheader.SplitAddresses(m.text("To")) }
func (m *Message) Cc() []string { return mailheader.SplitAddresses(m.text("Cc")) }

func (m *Message) Subject() *string { return m.text("Subject") }

func (m *Message) Date() *time.Time {
	if !m.header.Has("Date") {
		return nil
	}
	return mailheader.ParseDate(m.header.Get("Date"))
}

func (m *Message) Content() *string { return m.content }

// text returns the first value of the header key with encoded words decoded,
// or nil when the header is missing.
func (m *Message) text(key string) *string {
	if !m.header.Has(key) {
		return nil
	}
	s, err := m.header.Text(key)
	if err != nil {
		s = m.header.Get(key)
	}
	return &s
}
