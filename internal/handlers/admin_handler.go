package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type requestIDBody struct {
	ID any `json:"id"`
}

// requestID accepts the id as a JSON number or a numeric string.
func requestID(v any) (int64, bool) {
	switch id := v.(type) {
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, false
		}
		return int64(id), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		return n, err == nil && n > 0
	default:
		return 0, false
	}
}

func (h *Handler) bindRequestID(c *gin.Context) (int64, bool) {
	var body requestIDBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "ID de demande manquant.")
		return 0, false
	}
	id, ok := requestID(body.ID)
	if !ok {
		badRequest(c, "ID de demande manquant.")
	}
	return id, ok
}

// PendingRequests handles GET /api/admin/pending-requests.
func (h *Handler) PendingRequests(c *gin.Context) {
	c.JSON(http.StatusOK, h.Registration.PendingRequests())
}

// ValidateAccount handles POST /api/admin/validate-account.
func (h *Handler) ValidateAccount(c *gin.Context) {
	id, ok := h.bindRequestID(c)
	if !ok {
		return
	}
	acc, err := h.Registration.Validate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "userId": acc.ID})
}

// RefuseAccount handles POST /api/admin/refuse-account.
func (h *Handler) RefuseAccount(c *gin.Context) {
	id, ok := h.bindRequestID(c)
	if !ok {
		return
	}
	if err := h.Registration.Refuse(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
