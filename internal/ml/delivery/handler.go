package delivery

import (
	"context"
	"errors"
	"io"
	"net/http"

	authdelivery "github.com/jan-janssen/gmailsorter/internal/auth/delivery"
	emaildomain "github.com/jan-janssen/gmailsorter/internal/email/domain"
	mldto "github.com/jan-janssen/gmailsorter/internal/ml/dto"
	"github.com/jan-janssen/gmailsorter/internal/ml/usecase"

	"github.com/gin-gonic/gin"
)

// MailboxOpener builds an authorized transport for a stored user.
type MailboxOpener interface {
	Transport(ctx context.Context, userID uint) (emaildomain.MailTransport, error)
}

type SorterHandler struct {
	sorterUsecase usecase.SorterUsecase
	mailbox       MailboxOpener
	defaults      usecase.FitOptions
	sorterLabel   string
	ratio         float64
}

func NewSorterHandler(sorterUsecase usecase.SorterUsecase, mailbox MailboxOpener, defaults usecase.FitOptions, sorterLabel string, ratio float64) *SorterHandler {
	return &SorterHandler{
		sorterUsecase: sorterUsecase,
		mailbox:       mailbox,
		defaults:      defaults,
		sorterLabel:   sorterLabel,
		ratio:         ratio,
	}
}

// Train refits the caller's models on the local store.
func (h *SorterHandler) Train(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req mldto.TrainRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := h.defaults
	if req.NEstimators > 0 {
		opts.Params.NEstimators = req.NEstimators
	}
	if req.MaxFeatures > 0 {
		opts.Params.MaxFeatures = req.MaxFeatures
	}
	if req.RandomState != 0 {
		opts.Params.RandomState = req.RandomState
	}
	if req.Bootstrap != nil {
		opts.Params.Bootstrap = *req.Bootstrap
	}
	if req.IncludeDeleted != nil {
		opts.IncludeDeleted = *req.IncludeDeleted
	}

	report, err := h.sorterUsecase.FitToDatabase(c.Request.Context(), user.ID, opts)
	if err != nil {
		if errors.Is(err, usecase.ErrNoTrainingData) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// Filter moves the messages of a label to their recommended labels.
func (h *SorterHandler) Filter(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	var req mldto.FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Label == "" {
		req.Label = h.sorterLabel
	}
	if req.Ratio == 0 {
		req.Ratio = h.ratio
	}

	transport, err := h.mailbox.Transport(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	report, err := h.sorterUsecase.FilterMessagesFromServer(c.Request.Context(), user.ID, transport, req.Label, req.Ratio)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, emaildomain.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, emaildomain.ErrTransientRemote):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
