package api

import (
	"net/http"

	"github.com/jan-janssen/gmailsorter/internal/auth/delivery"
	authUsecase "github.com/jan-janssen/gmailsorter/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, h *Handler) {
	authHandler := delivery.NewAuthHandler(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.GET("/google/url", authHandler.GoogleAuthURL)
			auth.POST("/google", authHandler.GoogleSignIn)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", delivery.AuthMiddleware(authUsecase), authHandler.Me)
			auth.POST("/logout", authHandler.Logout)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(delivery.AuthMiddleware(authUsecase))
		{
			fcm.POST("/register", authHandler.RegisterDevice)
			fcm.DELETE("", authHandler.UnregisterAllDevices)
			fcm.DELETE("/:token", authHandler.UnregisterDevice)
		}

		// Local store (protected)
		emails := api.Group("/emails")
		emails.Use(delivery.AuthMiddleware(authUsecase))
		{
			emails.GET("", h.emailHandler.GetEmails)
			emails.POST("/sync", h.emailHandler.SyncEmails)
		}

		// Sorter routes (protected)
		sorter := api.Group("/sorter")
		sorter.Use(delivery.AuthMiddleware(authUsecase))
		{
			sorter.POST("/train", h.sorterHandler.Train)
			sorter.POST("/filter", h.sorterHandler.Filter)
			sorter.GET("/status", h.taskHandler.GetStatus)
			sorter.POST("/reset", h.taskHandler.Reset)
		}
	}
}
