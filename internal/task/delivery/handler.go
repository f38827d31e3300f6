package delivery

import (
	"net/http"

	authdelivery "github.com/jan-janssen/gmailsorter/internal/auth/delivery"
	"github.com/jan-janssen/gmailsorter/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler reports and resets the daemon tasks of the caller
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
	}
}

// GetStatus returns the status dict
// GET /api/sorter/status
func (h *TaskHandler) GetStatus(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	status, err := h.taskUsecase.StatusDict(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Reset puts the tasks back into the new-user state
// POST /api/sorter/reset
func (h *TaskHandler) Reset(c *gin.Context) {
	user, ok := authdelivery.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	if err := h.taskUsecase.Reset(user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "tasks reset"})
}
