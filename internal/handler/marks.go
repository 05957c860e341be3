package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListMarks godoc
// @Summary      Current venue marks
// @Description  Returns the latest cached mid price for every supported asset
// @Tags         marks
// @Produce      json
// @Success      200  {array}   domain.MarkSnapshot
// @Failure      500  {object}  map[string]string
// @Router       /api/marks [get]
func (h *Handler) ListMarks(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-marks")
	defer span.End()

	snaps, err := h.marks.ListMarks(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snaps)
}
