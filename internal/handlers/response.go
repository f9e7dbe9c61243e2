package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/models"
)

var errorStatus = []struct {
	err    error
	status int
	msg    string
}{
	{models.ErrValidation, http.StatusBadRequest, ""},
	{models.ErrExpired, http.StatusBadRequest, "Code expiré, veuillez en demander un nouveau."},
	{models.ErrMismatch, http.StatusBadRequest, "Code incorrect."},
	{models.ErrNotPreProvisioned, http.StatusNotFound, "Aucun compte pré-enregistré trouvé pour cet email. Veuillez contacter l'administrateur."},
	{models.ErrNotFound, http.StatusNotFound, "Ressource introuvable."},
	{models.ErrConflict, http.StatusConflict, "Un compte existe déjà avec cet email."},
	{models.ErrInvalidCredentials, http.StatusUnauthorized, "Email ou mot de passe incorrect."},
	{models.ErrForbidden, http.StatusForbidden, "Accès refusé."},
	{models.ErrDelivery, http.StatusInternalServerError, "Erreur lors de l'envoi de l'email."},
	{models.ErrProvisioning, http.StatusInternalServerError, "Impossible de préparer le dossier médical."},
}

// classify maps err to a status and the message shown to the client.
func classify(err error) (int, string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			if e.msg == "" {
				return e.status, err.Error()
			}
			return e.status, e.msg
		}
	}
	return http.StatusInternalServerError, "Erreur serveur."
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	_ = c.Error(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
