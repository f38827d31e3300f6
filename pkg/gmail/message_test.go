package gmail

import (
	"encoding/base64"
	"errors"
	"testing"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"

	"google.golang.org/api/gmail/v1"
)

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func headers(kv ...string) []*gmail.MessagePartHeader {
	out := make([]*gmail.MessagePartHeader, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &gmail.MessagePartHeader{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestNormalize(t *testing.T) {
	msg := &gmail.Message{
		Id:       "m1",
		ThreadId: "t1",
		LabelIds: []string{"INBOX", "Label_1"},
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: headers(
				"From", "Alice <Alice@Example.com>",
				"To", "Bob <bob@example.com>, carol@example.org, undisclosed-recipients",
				"Subject", "Hello",
				"Subject", "Ignored",
				"Date", "Fri, 11 Feb 2022 18:08:46 +0100",
			),
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("plain body")}},
			},
		},
	}

	got, err := Normalize(msg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.ID != "m1" || got.ThreadID != "t1" {
		t.Errorf("identity = %q/%q", got.ID, got.ThreadID)
	}
	if got.From == nil || *got.From != "alice@example.com" {
		t.Errorf("From = %v", got.From)
	}
	if len(got.To) != 2 || got.To[0] != "bob@example.com" || got.To[1] != "carol@example.org" {
		t.Errorf("To = %v", got.To)
	}
	if got.Cc == nil || len(got.Cc) != 0 {
		t.Errorf("Cc = %v, want empty list", got.Cc)
	}
	if got.Subject == nil || *got.Subject != "Hello" {
		t.Errorf("first Subject header should win, got %v", got.Subject)
	}
	if got.Body == nil || *got.Body != "plain body" {
		t.Errorf("Body = %v", got.Body)
	}
	if got.Date == nil {
		t.Fatal("Date should be parsed")
	}
	if len(got.Labels) != 2 {
		t.Errorf("Labels = %v", got.Labels)
	}
}

func TestNormalizeBodySelection(t *testing.T) {
	tests := []struct {
		name  string
		parts []*gmail.MessagePart
		want  *string
	}{
		{
			name:  "html stripped",
			parts: []*gmail.MessagePart{{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<b>Hi</b> there")}}},
			want:  strPtr("Hi there"),
		},
		{
			name: "nested alternative",
			parts: []*gmail.MessagePart{
				{MimeType: "image/png"},
				{MimeType: "multipart/alternative", Parts: []*gmail.MessagePart{
					{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("inner")}},
				}},
			},
			want: strPtr("inner"),
		},
		{
			name:  "empty alternative",
			parts: []*gmail.MessagePart{{MimeType: "multipart/alternative"}},
			want:  nil,
		},
		{
			name:  "plain without data",
			parts: []*gmail.MessagePart{{MimeType: "text/plain"}},
			want:  strPtr(""),
		},
		{
			name:  "unpadded data",
			parts: []*gmail.MessagePart{{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}}},
			want:  strPtr("hi"),
		},
		{
			name:  "attachment only",
			parts: []*gmail.MessagePart{{MimeType: "application/pdf"}},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &gmail.Message{Id: "m", ThreadId: "t", Payload: &gmail.MessagePart{Headers: headers(), Parts: tt.parts}}
			got, err := Normalize(msg)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			switch {
			case tt.want == nil && got.Body != nil:
				t.Errorf("Body = %q, want nil", *got.Body)
			case tt.want != nil && (got.Body == nil || *got.Body != *tt.want):
				t.Errorf("Body = %v, want %q", got.Body, *tt.want)
			}
		})
	}
}

func TestNormalizeSinglePartPayload(t *testing.T) {
	msg := &gmail.Message{
		Id:       "m",
		ThreadId: "t",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  headers("From", "a@b.com, c@d.com"),
			Body:     &gmail.MessagePartBody{Data: encode("single")},
		},
	}
	got, err := Normalize(msg)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if got.Body == nil || *got.Body != "single" {
		t.Errorf("Body = %v", got.Body)
	}
	if got.From != nil {
		t.Errorf("From should be nil for two senders, got %q", *got.From)
	}
	if got.Labels == nil || len(got.Labels) != 0 {
		t.Errorf("Labels = %v, want empty list", got.Labels)
	}
	if got.Subject != nil || got.Date != nil {
		t.Error("absent headers should be nil")
	}
}

func TestNormalizeMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  *gmail.Message
	}{
		{"nil", nil},
		{"no id", &gmail.Message{ThreadId: "t", Payload: &gmail.MessagePart{Headers: headers()}}},
		{"no thread", &gmail.Message{Id: "m", Payload: &gmail.MessagePart{Headers: headers()}}},
		{"no payload", &gmail.Message{Id: "m", ThreadId: "t"}},
		{"no headers", &gmail.Message{Id: "m", ThreadId: "t", Payload: &gmail.MessagePart{}}},
		{"bad base64", &gmail.Message{Id: "m", ThreadId: "t", Payload: &gmail.MessagePart{
			Headers:  headers(),
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: "!!!"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(tt.msg); !errors.Is(err, emaildomain.ErrMalformedMessage) {
				t.Errorf("expected ErrMalformedMessage, got %v", err)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
