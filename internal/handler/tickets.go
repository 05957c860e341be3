package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
)

// ListTickets godoc
// @Summary      List decision tickets
// @Description  Returns tickets newest first, filtered by state, address, and asset; live tickets carry the current mark and unrealized return
// @Tags         tickets
// @Produce      json
// @Param        state    query  string  false  "Ticket state (pending, open, closed, expired)"
// @Param        address  query  string  false  "Trader wallet address"
// @Param        asset    query  string  false  "Asset symbol (e.g., BTC, ETH)"
// @Param        limit    query  int     false  "Max results (default 50, max 500)"
// @Success      200  {array}   service.TicketView
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tickets [get]
func (h *Handler) ListTickets(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-tickets")
	defer span.End()

	f := domain.TicketFilter{
		Address: strings.TrimSpace(c.Query("address")),
		Asset:   strings.ToUpper(strings.TrimSpace(c.Query("asset"))),
	}
	if state := c.Query("state"); state != "" {
		f.State = domain.TicketState(strings.ToLower(state))
		if !f.State.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":        "unknown state: " + state,
				"valid_states": []string{"pending", "open", "closed", "expired"},
			})
			return
		}
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	f.Limit = limit
	span.SetAttributes(attribute.String("state", string(f.State)), attribute.Int("limit", limit))

	tickets, err := h.desk.ListTickets(ctx, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// GetTicket godoc
// @Summary      Get a single ticket
// @Description  Returns one ticket by ID; open tickets carry the current mark and unrealized return
// @Tags         tickets
// @Produce      json
// @Param        id   path  string  true  "Ticket ID"
// @Success      200  {object}  service.TicketView
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tickets/{id} [get]
func (h *Handler) GetTicket(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-ticket")
	defer span.End()

	id := strings.TrimSpace(c.Param("id"))
	span.SetAttributes(attribute.String("ticket_id", id))

	view, err := h.desk.GetTicket(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no ticket with id " + id})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}
