package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns service liveness and how many assets currently have a mark
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	marked := 0
	if h.marks != nil {
		if snaps, err := h.marks.ListMarks(c.Request.Context()); err == nil {
			marked = len(snaps)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "marked_assets": marked})
}
