package dto

import (
	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
)

// EmailsQuery binds the filters of GET /api/emails.
type EmailsQuery struct {
	Label          string `form:"label"`
	From           string `form:"from"`
	To             string `form:"to"`
	Cc             string `form:"cc"`
	Thread         string `form:"thread"`
	IncludeDeleted bool   `form:"include_deleted"`
}

type EmailsResponse struct {
	Emails []*emaildomain.Message `json:"emails"`
	Total  int                    `json:"total"`
}

type SyncQueuedResponse struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
	Quick   bool   `json:"quick"`
}
