package domain

import "time"

// EmailContent is the main row of a stored message. Multi-valued fields live
// in the side tables below, all keyed by (user_id, email_id).
type EmailContent struct {
	ID        uint       `json:"-" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"uniqueIndex:idx_content_user_email;not null"`
	EmailID   string     `json:"email_id" gorm:"uniqueIndex:idx_content_user_email;not null"`
	Subject   *string    `json:"subject"`
	Content   *string    `json:"content"`
	Deleted   bool       `json:"deleted" gorm:"not null;default:false"`
	Date      *time.Time `json:"date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (EmailContent) TableName() string { return "email_content" }

type EmailThread struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   uint   `gorm:"index:idx_thread_user_email;not null"`
	EmailID  string `gorm:"index:idx_thread_user_email;not null"`
	ThreadID string `gorm:"index;not null"`
}

func (EmailThread) TableName() string { return "email_threads" }

type EmailLabel struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"uniqueIndex:idx_label_user_email_label;not null"`
	EmailID string `gorm:"uniqueIndex:idx_label_user_email_label;not null"`
	LabelID string `gorm:"uniqueIndex:idx_label_user_email_label;index;not null"`
}

func (EmailLabel) TableName() string { return "email_labels" }

type EmailTo struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"index:idx_to_user_email;not null"`
	EmailID string `gorm:"index:idx_to_user_email;not null"`
	Address string `gorm:"column:email_to;index;not null"`
}

func (EmailTo) TableName() string { return "email_to" }

type EmailCc struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"index:idx_cc_user_email;not null"`
	EmailID string `gorm:"index:idx_cc_user_email;not null"`
	Address string `gorm:"column:email_cc;index;not null"`
}

func (EmailCc) TableName() string { return "email_cc" }

type EmailFrom struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  uint   `gorm:"index:idx_from_user_email;not null"`
	EmailID string `gorm:"index:idx_from_user_email;not null"`
	Address string `gorm:"column:email_from;index;not null"`
}

func (EmailFrom) TableName() string { return "email_from" }

// Models lists every table owned by the local store, for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&EmailContent{}, &EmailThread{}, &EmailLabel{}, &EmailTo{}, &EmailCc{}, &EmailFrom{},
	}
}
