package delivery

import (
	"net/http"
	"strconv"

	authdelivery "github.com/jan-janssen/gmailsorter/internal/auth/delivery"
	emaildto "github.com/jan-janssen/gmailsorter/internal/email/dto"
	"github.com/jan-janssen/gmailsorter/internal/email/usecase"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SyncQueue accepts background sync jobs.
type SyncQueue interface {
	QueueJob(job usecase.SyncJob) bool
}

type EmailHandler struct {
	syncUsecase usecase.SyncUsecase
	syncQueue   SyncQueue
}

func NewEmailHandler(syncUsecase usecase.SyncUsecase, syncQueue SyncQueue) *EmailHandler {
	return &EmailHandler{
		syncUsecase: syncUsecase,
		syncQueue:   syncQueue,
	}
}

func (h *EmailHandler) GetEmails(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var q emaildto.EmailsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	emails, err := h.syncUsecase.GetEmails(user.ID, usecase.EmailFilter{
		Label:          q.Label,
		From:           q.From,
		To:             q.To,
		Cc:             q.Cc,
		Thread:         q.Thread,
		IncludeDeleted: q.IncludeDeleted,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, emaildto.EmailsResponse{Emails: emails, Total: len(emails)})
}

// SyncEmails queues a sync of the caller's mailbox.
func (h *EmailHandler) SyncEmails(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	quick := false
	if quickStr := c.Query("quick"); quickStr != "" {
		parsed, err := strconv.ParseBool(quickStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quick must be a boolean"})
			return
		}
		quick = parsed
	}

	job := usecase.SyncJob{ID: uuid.NewString(), UserID: user.ID, Quick: quick}
	if !h.syncQueue.QueueJob(job) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, emaildto.SyncQueuedResponse{Message: "sync queued", JobID: job.ID, Quick: quick})
}
