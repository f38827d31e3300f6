package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	authdelivery "github.com/jan-janssen/gmailsorter/internal/auth/delivery"
	authdomain "github.com/jan-janssen/gmailsorter/internal/auth/domain"
	"github.com/jan-janssen/gmailsorter/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

type stubTasks struct {
	usecase.TaskUsecase
	resetUser uint
	resetErr  error
}

func (s *stubTasks) StatusDict(ctx context.Context, userID uint) (map[string]string, error) {
	return map[string]string{"update": "success", "fetch": "init", "label": "success", "filter": "fail"}, nil
}

func (s *stubTasks) Reset(userID uint) error {
	s.resetUser = userID
	return s.resetErr
}

func newTestRouter(h *TaskHandler, user *authdomain.User) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			authdelivery.SetCurrentUser(c, user)
		}
		c.Next()
	})
	r.GET("/api/sorter/status", h.GetStatus)
	r.POST("/api/sorter/reset", h.Reset)
	return r
}

func TestGetStatus(t *testing.T) {
	r := newTestRouter(NewTaskHandler(&stubTasks{}), &authdomain.User{ID: 2})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sorter/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if got["filter"] != "fail" || got["update"] != "success" {
		t.Errorf("body = %v", got)
	}
}

func TestGetStatusRequiresUser(t *testing.T) {
	r := newTestRouter(NewTaskHandler(&stubTasks{}), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sorter/status", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", w.Code)
	}
}

func TestReset(t *testing.T) {
	tasks := &stubTasks{}
	r := newTestRouter(NewTaskHandler(tasks), &authdomain.User{ID: 9})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sorter/reset", nil))
	if w.Code != http.StatusOK || tasks.resetUser != 9 {
		t.Errorf("status = %d, reset user = %d", w.Code, tasks.resetUser)
	}

	tasks.resetErr = errors.New("db down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/sorter/reset", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", w.Code)
	}
}
