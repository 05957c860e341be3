package handler

import (
	"net/http"
	"time"

	"github.com/fzheng/SigmaPilot/internal/event"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// FillRequest is one execution report in a backfill batch.
type FillRequest struct {
	TicketID string         `json:"ticket_id"`
	Asset    string         `json:"asset"`
	Price    float64        `json:"price"`
	Quantity float64        `json:"quantity"`
	FillTS   time.Time      `json:"fill_ts"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// IngestFills godoc
// @Summary      Backfill execution reports
// @Description  Applies a batch of fills to the ticket lifecycle; entries are independent, so one bad fill does not block the rest
// @Tags         fills
// @Accept       json
// @Produce      json
// @Param        X-API-Key  header  string                 false  "API key"
// @Param        fills      body    []handler.FillRequest  true   "Fills to apply"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]string
// @Router       /api/fills [post]
func (h *Handler) IngestFills(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-fills")
	defer span.End()

	var reqs []FillRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty fill batch"})
		return
	}
	span.SetAttributes(attribute.Int("fills", len(reqs)))

	applied := 0
	var failed []gin.H
	for i, req := range reqs {
		fill, err := event.NewFillEvent(req.TicketID, req.Asset, req.Price, req.Quantity, req.FillTS, req.Payload)
		if err == nil {
			err = h.fills.ApplyFill(ctx, fill)
		}
		if err != nil {
			failed = append(failed, gin.H{"index": i, "ticket_id": req.TicketID, "error": err.Error()})
			continue
		}
		applied++
	}

	resp := gin.H{"applied": applied}
	if len(failed) > 0 {
		resp["failed"] = failed
	}
	c.JSON(http.StatusOK, resp)
}
