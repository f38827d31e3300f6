package repository

import (
	"sort"

	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Upper bound for IN (...) lists; sqlite limits bound parameters.
const inChunkSize = 500

var _ EmailRepository = (*emailRepository)(nil)

// emailRepository implements EmailRepository interface
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{
		db: db,
	}
}

func (r *emailRepository) ListEmailIDs(userID uint) ([]string, error) {
	var ids []string
	err := r.db.Model(&emaildomain.EmailContent{}).
		Where("user_id = ?", userID).
		Order("id").
		Pluck("email_id", &ids).Error
	return ids, err
}

func (r *emailRepository) StoreMessage(userID uint, msg *emaildomain.Message) (bool, error) {
	stored := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		content := &emaildomain.EmailContent{
			UserID:  userID,
			EmailID: msg.ID,
			Subject: msg.Subject,
			Content: msg.Body,
			Deleted: false,
			Date:    msg.Date,
		}
		// Ids are permanent: an existing row is never recreated.
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(content)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		stored = true

		if err := tx.Create(&emaildomain.EmailThread{UserID: userID, EmailID: msg.ID, ThreadID: msg.ThreadID}).Error; err != nil {
			return err
		}
		if msg.From != nil {
			if err := tx.Create(&emaildomain.EmailFrom{UserID: userID, EmailID: msg.ID, Address: *msg.From}).Error; err != nil {
				return err
			}
		}
		if rows := labelRows(userID, msg.ID, msg.Labels); len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(msg.To) > 0 {
			rows := make([]emaildomain.EmailTo, 0, len(msg.To))
			for _, addr := range msg.To {
				rows = append(rows, emaildomain.EmailTo{UserID: userID, EmailID: msg.ID, Address: addr})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(msg.Cc) > 0 {
			rows := make([]emaildomain.EmailCc, 0, len(msg.Cc))
			for _, addr := range msg.Cc {
				rows = append(rows, emaildomain.EmailCc{UserID: userID, EmailID: msg.ID, Address: addr})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return stored, err
}

func (r *emailRepository) MarkEmailsAsDeleted(userID uint, emailIDs []string) (int64, error) {
	var total int64
	for _, chunk := range chunks(emailIDs) {
		// Rows already flagged are left alone so a repeated call writes nothing.
		result := r.db.Model(&emaildomain.EmailContent{}).
			Where("user_id = ? AND email_id IN ? AND deleted = ?", userID, chunk, false).
			Update("deleted", true)
		if result.Error != nil {
			return total, result.Error
		}
		total += result.RowsAffected
	}
	return total, nil
}

func (r *emailRepository) GetLabels(userID uint, emailID string) ([]string, error) {
	var labels []string
	err := r.db.Model(&emaildomain.EmailLabel{}).
		Where("user_id = ? AND email_id = ?", userID, emailID).
		Order("id").
		Pluck("label_id", &labels).Error
	return labels, err
}

func (r *emailRepository) UpdateLabels(userID uint, emailID string, labels []string) ([]string, []string, error) {
	var added, removed []string
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var stored []string
		if err := tx.Model(&emaildomain.EmailLabel{}).
			Where("user_id = ? AND email_id = ?", userID, emailID).
			Pluck("label_id", &stored).Error; err != nil {
			return err
		}

		added, removed = labelDiff(stored, labels)
		if len(added) > 0 {
			rows := labelRows(userID, emailID, added)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(removed) > 0 {
			if err := tx.Where("user_id = ? AND email_id = ? AND label_id IN ?", userID, emailID, removed).
				Delete(&emaildomain.EmailLabel{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return added, removed, nil
}

func (r *emailRepository) GetAllEmails(userID uint, includeDeleted bool) ([]*emaildomain.Message, error) {
	query := r.db.Where("user_id = ?", userID)
	if !includeDeleted {
		query = query.Where("deleted = ?", false)
	}
	var contents []emaildomain.EmailContent
	if err := query.Order("id").Find(&contents).Error; err != nil {
		return nil, err
	}
	return r.assemble(userID, contents)
}

func (r *emailRepository) GetEmailsByLabel(userID uint, labelID string, includeDeleted bool) ([]*emaildomain.Message, error) {
	return r.getEmailsBySideTable(&emaildomain.EmailLabel{}, "label_id", userID, labelID, includeDeleted)
}

func (r *emailRepository) GetEmailsByFrom(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error) {
	return r.getEmailsBySideTable(&emaildomain.EmailFrom{}, "email_from", userID, address, includeDeleted)
}

func (r *emailRepository) GetEmailsByTo(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error) {
	return r.getEmailsBySideTable(&emaildomain.EmailTo{}, "email_to", userID, address, includeDeleted)
}

func (r *emailRepository) GetEmailsByCc(userID uint, address string, includeDeleted bool) ([]*emaildomain.Message, error) {
	return r.getEmailsBySideTable(&emaildomain.EmailCc{}, "email_cc", userID, address, includeDeleted)
}

func (r *emailRepository) GetEmailsByThread(userID uint, threadID string, includeDeleted bool) ([]*emaildomain.Message, error) {
	return r.getEmailsBySideTable(&emaildomain.EmailThread{}, "thread_id", userID, threadID, includeDeleted)
}

func (r *emailRepository) getEmailsBySideTable(model interface{}, column string, userID uint, value string, includeDeleted bool) ([]*emaildomain.Message, error) {
	var emailIDs []string
	if err := r.db.Model(model).
		Where("user_id = ? AND "+column+" = ?", userID, value).
		Distinct().
		Pluck("email_id", &emailIDs).Error; err != nil {
		return nil, err
	}
	if len(emailIDs) == 0 {
		return []*emaildomain.Message{}, nil
	}

	var contents []emaildomain.EmailContent
	for _, chunk := range chunks(emailIDs) {
		query := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk)
		if !includeDeleted {
			query = query.Where("deleted = ?", false)
		}
		var part []emaildomain.EmailContent
		if err := query.Find(&part).Error; err != nil {
			return nil, err
		}
		contents = append(contents, part...)
	}
	sort.Slice(contents, func(i, j int) bool { return contents[i].ID < contents[j].ID })
	return r.assemble(userID, contents)
}

// assemble joins content rows with their side tables, loading each side table
// once per chunk instead of once per message.
func (r *emailRepository) assemble(userID uint, contents []emaildomain.EmailContent) ([]*emaildomain.Message, error) {
	messages := make([]*emaildomain.Message, 0, len(contents))
	byID := make(map[string]*emaildomain.Message, len(contents))
	ids := make([]string, 0, len(contents))
	for _, c := range contents {
		m := &emaildomain.Message{
			ID:      c.EmailID,
			Labels:  []string{},
			To:      []string{},
			Cc:      []string{},
			Subject: c.Subject,
			Body:    c.Content,
			Date:    c.Date,
			Deleted: c.Deleted,
		}
		messages = append(messages, m)
		byID[c.EmailID] = m
		ids = append(ids, c.EmailID)
	}

	for _, chunk := range chunks(ids) {
		var threads []emaildomain.EmailThread
		if err := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk).Order("id").Find(&threads).Error; err != nil {
			return nil, err
		}
		for _, t := range threads {
			if m := byID[t.EmailID]; m != nil && m.ThreadID == "" {
				m.ThreadID = t.ThreadID
			}
		}

		var labels []emaildomain.EmailLabel
		if err := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk).Order("id").Find(&labels).Error; err != nil {
			return nil, err
		}
		for _, l := range labels {
			if m := byID[l.EmailID]; m != nil {
				m.Labels = append(m.Labels, l.LabelID)
			}
		}

		var froms []emaildomain.EmailFrom
		if err := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk).Order("id").Find(&froms).Error; err != nil {
			return nil, err
		}
		for _, f := range froms {
			if m := byID[f.EmailID]; m != nil && m.From == nil {
				addr := f.Address
				m.From = &addr
			}
		}

		var tos []emaildomain.EmailTo
		if err := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk).Order("id").Find(&tos).Error; err != nil {
			return nil, err
		}
		for _, t := range tos {
			if m := byID[t.EmailID]; m != nil {
				m.To = append(m.To, t.Address)
			}
		}

		var ccs []emaildomain.EmailCc
		if err := r.db.Where("user_id = ? AND email_id IN ?", userID, chunk).Order("id").Find(&ccs).Error; err != nil {
			return nil, err
		}
		for _, c := range ccs {
			if m := byID[c.EmailID]; m != nil {
				m.Cc = append(m.Cc, c.Address)
			}
		}
	}

	return messages, nil
}

func labelRows(userID uint, emailID string, labels []string) []emaildomain.EmailLabel {
	rows := make([]emaildomain.EmailLabel, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		rows = append(rows, emaildomain.EmailLabel{UserID: userID, EmailID: emailID, LabelID: l})
	}
	return rows
}

// labelDiff returns the labels to insert and to delete, both sorted.
func labelDiff(stored, wanted []string) (added, removed []string) {
	have := make(map[string]struct{}, len(stored))
	for _, l := range stored {
		have[l] = struct{}{}
	}
	want := make(map[string]struct{}, len(wanted))
	for _, l := range wanted {
		want[l] = struct{}{}
	}
	for l := range want {
		if _, ok := have[l]; !ok {
			added = append(added, l)
		}
	}
	for l := range have {
		if _, ok := want[l]; !ok {
			removed = append(removed, l)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func chunks(ids []string) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += inChunkSize {
		end := start + inChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
