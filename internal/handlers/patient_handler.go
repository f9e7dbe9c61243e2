package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/renalcare-api/internal/middleware"
	"github.com/harentsoaR/renalcare-api/internal/models"
)

// MyDossier handles GET /api/patients/me/dossier. The dossier is created
// on first access.
func (h *Handler) MyDossier(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	res, err := h.Dossiers.Resolve(c.Request.Context(), userID, c.Query("dossierId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	// A dossier whose owner cannot be read is never handed out.
	if res.Dossier.OwnerID == "" || res.Dossier.OwnerID != userID {
		h.fail(c, fmt.Errorf("dossier %s: %w", res.Dossier.ID, models.ErrForbidden))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"dossierId": res.Dossier.ID,
		"created":   res.Created,
		"dossier":   res.Dossier,
	})
}
