package team

import (
	"esign-dashboard/internal/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListMine returns the teams the session user belongs to.
func (h *Handler) ListMine(c *gin.Context) {
	userID, _, _ := middleware.CurrentUser(c)

	teams, err := h.service.ListForUser(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": teams})
}
