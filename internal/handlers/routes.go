package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/middleware"
	"github.com/harentsoaR/renalcare-api/internal/models"
)

// RegisterRoutes mounts the API on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	register := api.Group("/register")
	{
		register.POST("/send-code", h.SendCode)
		register.POST("/verify-code", h.VerifyCode)
		register.POST("/complete", h.Complete)
	}

	api.POST("/contact", h.Contact)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", middleware.AuthMiddleware(h.Tokens), h.GetCurrentUser)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(h.Tokens), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/pending-requests", h.PendingRequests)
		admin.POST("/validate-account", h.ValidateAccount)
		admin.POST("/refuse-account", h.RefuseAccount)
	}

	patients := api.Group("/patients")
	patients.Use(middleware.AuthMiddleware(h.Tokens), middleware.RequireRole(models.RolePatient))
	{
		patients.GET("/me/dossier", h.MyDossier)
	}
}
