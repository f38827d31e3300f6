package api

import (
	authUsecase "github.com/jan-janssen/gmailsorter/internal/auth/usecase"
	emailDelivery "github.com/jan-janssen/gmailsorter/internal/email/delivery"
	emailUsecasePkg "github.com/jan-janssen/gmailsorter/internal/email/usecase"
	mlDelivery "github.com/jan-janssen/gmailsorter/internal/ml/delivery"
	mlUsecasePkg "github.com/jan-janssen/gmailsorter/internal/ml/usecase"
	taskDelivery "github.com/jan-janssen/gmailsorter/internal/task/delivery"
	taskUsecasePkg "github.com/jan-janssen/gmailsorter/internal/task/usecase"
	"github.com/jan-janssen/gmailsorter/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase   authUsecase.AuthUsecase
	emailHandler  *emailDelivery.EmailHandler
	sorterHandler *mlDelivery.SorterHandler
	taskHandler   *taskDelivery.TaskHandler
	config        *config.Config
}

func NewHandler(authUc authUsecase.AuthUsecase, syncUc emailUsecasePkg.SyncUsecase, syncQueue emailDelivery.SyncQueue, sorterUc mlUsecasePkg.SorterUsecase, taskUc taskUsecasePkg.TaskUsecase, cfg *config.Config) *Handler {
	sorterHandler := mlDelivery.NewSorterHandler(sorterUc, syncUc,
		mlUsecasePkg.DefaultFitOptions(cfg.ML), cfg.SorterLabel, cfg.ML.RecommendationRatio)

	return &Handler{
		authUsecase:   authUc,
		emailHandler:  emailDelivery.NewEmailHandler(syncUc, syncQueue),
		sorterHandler: sorterHandler,
		taskHandler:   taskDelivery.NewTaskHandler(taskUc),
		config:        cfg,
	}
}

// Router builds the engine with CORS and all routes.
func (h *Handler) Router() *gin.Engine {
	if !h.config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h)
	return r
}
