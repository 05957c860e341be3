package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// PnLSummary godoc
// @Summary      Realized P&L summary
// @Description  Aggregates realized returns over an address's closed tickets
// @Tags         pnl
// @Produce      json
// @Param        address  query  string  true  "Trader wallet address"
// @Success      200  {object}  domain.PnLSummary
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/pnl/summary [get]
func (h *Handler) PnLSummary(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.pnl-summary")
	defer span.End()

	address := strings.TrimSpace(c.Query("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address query parameter is required"})
		return
	}
	span.SetAttributes(attribute.String("address", address))

	summary, err := h.desk.Summary(ctx, address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
