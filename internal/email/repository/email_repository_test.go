package repository

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupEmailTestDB creates a test database for email repository tests
func setupEmailTestDB(t *testing.T) (*gorm.DB, func()) {
	tempDir, err := os.MkdirTemp("", "email_repo_test_*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(tempDir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.AutoMigrate(emaildomain.Models()...); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		os.RemoveAll(tempDir)
	}
	return db, cleanup
}

func strPtr(s string) *string { return &s }

func sampleMessage(id string, labels ...string) *emaildomain.Message {
	date := time.Date(2022, 10, 6, 20, 12, 26, 0, time.UTC)
	return &emaildomain.Message{
		ID:       id,
		ThreadID: "thread-" + id,
		Labels:   labels,
		From:     strPtr("alice@example.com"),
		To:       []string{"bob@example.com", "carol@example.org"},
		Cc:       []string{"dave@example.net"},
		Subject:  strPtr("Subject " + id),
		Body:     strPtr("Body of " + id),
		Date:     &date,
	}
}

func TestStoreMessageRoundTrip(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	msg := sampleMessage("m1", "INBOX", "Label_1")
	stored, err := repo.StoreMessage(1, msg)
	if err != nil || !stored {
		t.Fatalf("StoreMessage = %v, %v", stored, err)
	}

	got, err := repo.GetAllEmails(1, false)
	if err != nil {
		t.Fatalf("GetAllEmails failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 email, got %d", len(got))
	}
	m := got[0]
	if m.ID != "m1" || m.ThreadID != "thread-m1" {
		t.Errorf("unexpected identity %s/%s", m.ID, m.ThreadID)
	}
	if !reflect.DeepEqual(m.Labels, []string{"INBOX", "Label_1"}) {
		t.Errorf("Labels = %v", m.Labels)
	}
	if m.From == nil || *m.From != "alice@example.com" {
		t.Errorf("From = %v", m.From)
	}
	if !reflect.DeepEqual(m.To, msg.To) || !reflect.DeepEqual(m.Cc, msg.Cc) {
		t.Errorf("To/Cc = %v/%v", m.To, m.Cc)
	}
	if m.Date == nil || !m.Date.Equal(*msg.Date) {
		t.Errorf("Date = %v", m.Date)
	}

	// A second store of the same id is ignored.
	stored, err = repo.StoreMessage(1, sampleMessage("m1", "SPAM"))
	if err != nil || stored {
		t.Fatalf("duplicate StoreMessage = %v, %v", stored, err)
	}
	labels, _ := repo.GetLabels(1, "m1")
	if !reflect.DeepEqual(labels, []string{"INBOX", "Label_1"}) {
		t.Errorf("duplicate store changed labels: %v", labels)
	}
}

func TestStoreMessageWithoutOptionalFields(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	msg := &emaildomain.Message{ID: "bare", ThreadID: "t", Labels: []string{}, To: []string{}, Cc: []string{}}
	if _, err := repo.StoreMessage(1, msg); err != nil {
		t.Fatalf("StoreMessage failed: %v", err)
	}
	got, err := repo.GetAllEmails(1, false)
	if err != nil || len(got) != 1 {
		t.Fatalf("GetAllEmails = %v, %v", got, err)
	}
	if got[0].From != nil || got[0].Subject != nil || got[0].Body != nil || got[0].Date != nil {
		t.Errorf("absent fields should stay nil: %+v", got[0])
	}
	if got[0].Labels == nil || got[0].To == nil || got[0].Cc == nil {
		t.Error("absent lists should be empty, not nil")
	}
}

func TestMarkEmailsAsDeleted(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := repo.StoreMessage(1, sampleMessage(id, "INBOX")); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.MarkEmailsAsDeleted(1, []string{"b"})
	if err != nil || n != 1 {
		t.Fatalf("MarkEmailsAsDeleted = %d, %v", n, err)
	}
	n, err = repo.MarkEmailsAsDeleted(1, []string{"b"})
	if err != nil || n != 0 {
		t.Fatalf("repeated MarkEmailsAsDeleted = %d, %v", n, err)
	}

	live, _ := repo.GetAllEmails(1, false)
	if len(live) != 2 || live[0].ID != "a" || live[1].ID != "c" {
		t.Errorf("live emails = %v", ids(live))
	}
	all, _ := repo.GetAllEmails(1, true)
	if len(all) != 3 || !all[1].Deleted {
		t.Errorf("all emails = %v", ids(all))
	}

	// The id stays known so it is never downloaded again.
	known, _ := repo.ListEmailIDs(1)
	if !reflect.DeepEqual(known, []string{"a", "b", "c"}) {
		t.Errorf("ListEmailIDs = %v", known)
	}

	byLabel, _ := repo.GetEmailsByLabel(1, "INBOX", false)
	if len(byLabel) != 2 {
		t.Errorf("deleted email returned by label lookup: %v", ids(byLabel))
	}
}

func TestDeletedEmailStaysDeleted(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	if _, err := repo.StoreMessage(1, sampleMessage("m1", "INBOX")); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MarkEmailsAsDeleted(1, []string{"m1"}); err != nil {
		t.Fatal(err)
	}

	// the id shows up remotely again: only its labels follow
	stored, err := repo.StoreMessage(1, sampleMessage("m1", "Label_9"))
	if err != nil || stored {
		t.Fatalf("StoreMessage of a known id = %v, %v", stored, err)
	}
	if _, _, err := repo.UpdateLabels(1, "m1", []string{"Label_9"}); err != nil {
		t.Fatalf("UpdateLabels failed: %v", err)
	}

	if live, _ := repo.GetAllEmails(1, false); len(live) != 0 {
		t.Errorf("deleted email came back: %v", ids(live))
	}
	all, _ := repo.GetAllEmails(1, true)
	if len(all) != 1 || !all[0].Deleted || !reflect.DeepEqual(all[0].Labels, []string{"Label_9"}) {
		t.Errorf("all emails = %+v", all)
	}
}

func TestUpdateLabelsWritesDifferenceOnly(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	if _, err := repo.StoreMessage(1, sampleMessage("m1", "important", "Label_123")); err != nil {
		t.Fatal(err)
	}

	added, removed, err := repo.UpdateLabels(1, "m1", []string{"important", "Label_456"})
	if err != nil {
		t.Fatalf("UpdateLabels failed: %v", err)
	}
	if !reflect.DeepEqual(added, []string{"Label_456"}) || !reflect.DeepEqual(removed, []string{"Label_123"}) {
		t.Errorf("added=%v removed=%v", added, removed)
	}

	var importantRow emaildomain.EmailLabel
	db.Where("email_id = ? AND label_id = ?", "m1", "important").First(&importantRow)
	firstRowID := importantRow.ID

	added, removed, err = repo.UpdateLabels(1, "m1", []string{"important", "Label_456"})
	if err != nil || len(added) != 0 || len(removed) != 0 {
		t.Fatalf("repeated UpdateLabels = %v, %v, %v", added, removed, err)
	}

	db.Where("email_id = ? AND label_id = ?", "m1", "important").First(&importantRow)
	if importantRow.ID != firstRowID {
		t.Error("unchanged label row was rewritten")
	}

	labels, _ := repo.GetLabels(1, "m1")
	if len(labels) != 2 {
		t.Errorf("labels = %v", labels)
	}
}

func TestLookupsByField(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)

	m1 := sampleMessage("m1", "INBOX")
	m2 := sampleMessage("m2", "Label_1")
	m2.From = strPtr("eve@example.com")
	m2.Cc = []string{}
	m2.ThreadID = m1.ThreadID
	repo.StoreMessage(1, m1)
	repo.StoreMessage(1, m2)
	repo.StoreMessage(2, sampleMessage("m3", "INBOX"))

	tests := []struct {
		name string
		get  func() ([]*emaildomain.Message, error)
		want []string
	}{
		{"label", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByLabel(1, "Label_1", false) }, []string{"m2"}},
		{"from", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByFrom(1, "alice@example.com", false) }, []string{"m1"}},
		{"to", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByTo(1, "bob@example.com", false) }, []string{"m1", "m2"}},
		{"cc", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByCc(1, "dave@example.net", false) }, []string{"m1"}},
		{"thread", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByThread(1, "thread-m1", false) }, []string{"m1", "m2"}},
		{"other user", func() ([]*emaildomain.Message, error) { return repo.GetAllEmails(2, false) }, []string{"m3"}},
		{"no match", func() ([]*emaildomain.Message, error) { return repo.GetEmailsByLabel(1, "Label_9", false) }, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatalf("lookup failed: %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("got %v, want %v", ids(got), tt.want)
			}
		})
	}
}

// Applying the same label set twice must leave the store unchanged.
func TestProperty_UpdateLabelsIdempotent(t *testing.T) {
	db, cleanup := setupEmailTestDB(t)
	defer cleanup()
	repo := NewEmailRepository(db)
	repo.StoreMessage(1, sampleMessage("m1", "INBOX"))

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	labelGen := gen.IntRange(0, 5).Map(func(i int) string {
		return []string{"INBOX", "SPAM", "UNREAD", "Label_1", "Label_2", "Label_3"}[i]
	})

	properties.Property("second_update_is_noop", prop.ForAll(
		func(labels []string) bool {
			if _, _, err := repo.UpdateLabels(1, "m1", labels); err != nil {
				return false
			}
			added, removed, err := repo.UpdateLabels(1, "m1", labels)
			if err != nil || len(added) != 0 || len(removed) != 0 {
				return false
			}
			stored, err := repo.GetLabels(1, "m1")
			if err != nil {
				return false
			}
			want := make(map[string]bool)
			for _, l := range labels {
				want[l] = true
			}
			if len(stored) != len(want) {
				return false
			}
			for _, l := range stored {
				if !want[l] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(labelGen),
	))

	properties.TestingRun(t)
}

func ids(msgs []*emaildomain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}
