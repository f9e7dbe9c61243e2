package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

type contactRequest struct {
	Type      string `json:"type"`
	Prenom    string `json:"prenom" binding:"required"`
	Nom       string `json:"nom" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Telephone string `json:"telephone"`
	Sujet     string `json:"sujet"`
	Message   string `json:"message"`
}

// Contact handles POST /api/contact: a visitor asks for an account.
func (h *Handler) Contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Prénom, nom et email sont requis.")
		return
	}

	id, err := h.Registration.SubmitRequest(c.Request.Context(), models.PendingRequest{
		Type:      req.Type,
		Prenom:    req.Prenom,
		Nom:       req.Nom,
		Email:     req.Email,
		Telephone: req.Telephone,
		Sujet:     req.Sujet,
		Message:   req.Message,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id})
}
