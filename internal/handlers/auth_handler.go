package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/middleware"
	"github.com/harentsoaR/renalcare-api/internal/services"
)

type registerRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	SecuriteSociale string `json:"securite_sociale" binding:"required"`
	Role            string `json:"role" binding:"required"`
	Telephone       string `json:"telephone"`
}

// Register handles POST /api/auth/register. The account is created with
// placeholder identity fields, to be finished through /api/register/complete.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	acc, err := h.Registration.Register(c.Request.Context(), services.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		SecuriteSociale: req.SecuriteSociale,
		Role:            req.Role,
		Telephone:       req.Telephone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "user": acc})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email et mot de passe requis.")
		return
	}

	acc, err := h.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	token, err := h.Tokens.Generate(acc.ID, acc.Role)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": acc})
}

// GetCurrentUser retrieves the profile of the authenticated user.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	acc, err := h.Accounts.Get(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": acc})
}
