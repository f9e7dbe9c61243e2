package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/services"
)

type sendCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Role  string `json:"role"`
}

// SendCode handles POST /api/register/send-code.
func (h *Handler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email manquant.")
		return
	}
	if err := h.Registration.SendCode(c.Request.Context(), req.Email, req.Role); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type verifyCodeRequest struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// VerifyCode handles POST /api/register/verify-code.
func (h *Handler) VerifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email ou code manquant.")
		return
	}
	role, err := h.Registration.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "role": role})
}

type completeRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	Role            string `json:"role"`
	Nom             string `json:"nom"`
	Prenom          string `json:"prenom"`
	Telephone       string `json:"telephone"`
	Adresse         string `json:"adresse"`
	Genre           string `json:"genre"`
	DateNaissance   string `json:"date_naissance"`
	SecuriteSociale string `json:"securite_sociale"`
	AdresseHopital  string `json:"adresse_hopital"`
	DateGreffe      string `json:"date_greffe"`
	Maladie         string `json:"maladie"`
	GroupeSanguin   string `json:"groupe_sanguin"`
	// Forms send these either as numbers or as strings.
	Poids     any    `json:"poids"`
	Taille    any    `json:"taille"`
	Allergies string `json:"allergies"`
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Complete handles POST /api/register/complete.
func (h *Handler) Complete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email et mot de passe requis.")
		return
	}
	acc, err := h.Registration.Complete(c.Request.Context(), services.CompleteInput{
		Email:           req.Email,
		Password:        req.Password,
		Role:            req.Role,
		Nom:             req.Nom,
		Prenom:          req.Prenom,
		Telephone:       req.Telephone,
		Adresse:         req.Adresse,
		Genre:           req.Genre,
		DateNaissance:   req.DateNaissance,
		SecuriteSociale: req.SecuriteSociale,
		AdresseHopital:  req.AdresseHopital,
		DateGreffe:      req.DateGreffe,
		Maladie:         req.Maladie,
		GroupeSanguin:   req.GroupeSanguin,
		Poids:           stringify(req.Poids),
		Taille:          stringify(req.Taille),
		Allergies:       req.Allergies,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Inscription finalisée avec succès.",
		"user":    acc,
	})
}
