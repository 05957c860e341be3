package handler

import (
	"context"

	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// FillIngestor applies execution reports to the ticket lifecycle. The
// ticket manager satisfies it, so backfilled fills take the same path
// as fills consumed from the stream.
type FillIngestor interface {
	ApplyFill(ctx context.Context, fill event.FillEvent) error
}

type Handler struct {
	tracer trace.Tracer
	desk   *service.DeskService
	marks  *service.MarkService
	fills  FillIngestor
}

func New(tracer trace.Tracer, desk *service.DeskService, marks *service.MarkService, fills FillIngestor) *Handler {
	return &Handler{
		tracer: tracer,
		desk:   desk,
		marks:  marks,
		fills:  fills,
	}
}

// RegisterRoutes wires all routes onto the router. An empty apiKey
// leaves the fill backfill endpoint unguarded.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)
	r.GET("/api/tickets", h.ListTickets)
	r.GET("/api/tickets/:id", h.GetTicket)
	r.GET("/api/pnl/summary", h.PnLSummary)
	r.GET("/api/marks", h.ListMarks)
	r.POST("/api/fills", APIKeyAuth(apiKey), h.IngestFills)
}
