// Package mcp exposes the desk to agent tooling over the Model Context
// Protocol. Every tool is read-only: tickets, marks, and realized track
// records. Writes stay on the stream bus and the HTTP backfill endpoint.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/jackc/pgx/v5"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DeskQuerier provides the ticket reads the tools expose.
type DeskQuerier interface {
	GetTicket(ctx context.Context, ticketID string) (*service.TicketView, error)
	ListTickets(ctx context.Context, f domain.TicketFilter) ([]service.TicketView, error)
	Overview(ctx context.Context, address string) (*service.DeskOverview, error)
}

// MarkQuerier provides current marks.
type MarkQuerier interface {
	ListMarks(ctx context.Context) ([]*domain.MarkSnapshot, error)
}

// Limiter throttles tool calls. provider.RateLimiter satisfies it.
type Limiter interface {
	Allow() bool
}

// Server wires the desk into an MCP server. The same instance can serve
// stdio and streamable HTTP.
type Server struct {
	desk    DeskQuerier
	marks   MarkQuerier
	limiter Limiter
	timeout time.Duration
	srv     *sdk.Server
}

func NewServer(desk DeskQuerier, marks MarkQuerier, limiter Limiter, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &Server{
		desk:    desk,
		marks:   marks,
		limiter: limiter,
		timeout: timeout,
		srv: sdk.NewServer(&sdk.Implementation{
			Name:    "sigmapilot",
			Title:   "SigmaPilot trading desk",
			Version: "1.0.0",
		}, nil),
	}
	s.register()
	return s
}

func (s *Server) register() {
	sdk.AddTool(s.srv, &sdk.Tool{
		Name:        "desk_summary",
		Description: "Live tickets plus the realized track record for one address",
	}, s.deskSummary)
	sdk.AddTool(s.srv, &sdk.Tool{
		Name:        "list_tickets",
		Description: "List tickets, optionally filtered by state, asset, or address",
	}, s.listTickets)
	sdk.AddTool(s.srv, &sdk.Tool{
		Name:        "get_ticket",
		Description: "Fetch one ticket by id, decorated with the current mark",
	}, s.getTicket)
	sdk.AddTool(s.srv, &sdk.Tool{
		Name:        "list_marks",
		Description: "Current mark per supported asset",
	}, s.listMarks)
}

// RunStdio serves the session over stdin/stdout until the client hangs up.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.srv.Run(ctx, &sdk.StdioTransport{})
}

// Handler returns the streamable HTTP handler. A non-empty token requires
// Authorization: Bearer <token> on every request.
func (s *Server) Handler(authToken string) http.Handler {
	h := sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server { return s.srv }, nil)
	if authToken == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+authToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) admit() error {
	if s.limiter != nil && !s.limiter.Allow() {
		return errors.New("rate limit exceeded, retry later")
	}
	return nil
}

type summaryArgs struct {
	Address string `json:"address" jsonschema:"the address whose desk to summarize"`
}

type listTicketsArgs struct {
	State   string `json:"state,omitempty" jsonschema:"filter by ticket state: pending, open, closed, or expired"`
	Asset   string `json:"asset,omitempty" jsonschema:"filter by asset symbol, e.g. BTC"`
	Address string `json:"address,omitempty" jsonschema:"filter by originating address"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum tickets to return, defaults to 50"`
}

type getTicketArgs struct {
	TicketID string `json:"ticket_id" jsonschema:"the ticket id to fetch"`
}

type listMarksArgs struct{}

type ticketList struct {
	Tickets []service.TicketView `json:"tickets"`
}

type markList struct {
	Marks []*domain.MarkSnapshot `json:"marks"`
}

func (s *Server) deskSummary(ctx context.Context, _ *sdk.CallToolRequest, args summaryArgs) (*sdk.CallToolResult, *service.DeskOverview, error) {
	if err := s.admit(); err != nil {
		return nil, nil, err
	}
	address := strings.TrimSpace(args.Address)
	if address == "" {
		return nil, nil, errors.New("address is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	overview, err := s.desk.Overview(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	return nil, overview, nil
}

func (s *Server) listTickets(ctx context.Context, _ *sdk.CallToolRequest, args listTicketsArgs) (*sdk.CallToolResult, ticketList, error) {
	if err := s.admit(); err != nil {
		return nil, ticketList{}, err
	}

	f := domain.TicketFilter{
		Address: strings.TrimSpace(args.Address),
		Asset:   strings.ToUpper(strings.TrimSpace(args.Asset)),
		Limit:   args.Limit,
	}
	if state := strings.ToLower(strings.TrimSpace(args.State)); state != "" {
		f.State = domain.TicketState(state)
		if !f.State.IsValid() {
			return nil, ticketList{}, fmt.Errorf("unknown state: %s", state)
		}
	}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	views, err := s.desk.ListTickets(ctx, f)
	if err != nil {
		return nil, ticketList{}, err
	}
	return nil, ticketList{Tickets: views}, nil
}

func (s *Server) getTicket(ctx context.Context, _ *sdk.CallToolRequest, args getTicketArgs) (*sdk.CallToolResult, *service.TicketView, error) {
	if err := s.admit(); err != nil {
		return nil, nil, err
	}
	id := strings.TrimSpace(args.TicketID)
	if id == "" {
		return nil, nil, errors.New("ticket_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	view, err := s.desk.GetTicket(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("no ticket with id %s", id)
	}
	if err != nil {
		return nil, nil, err
	}
	return nil, view, nil
}

func (s *Server) listMarks(ctx context.Context, _ *sdk.CallToolRequest, _ listMarksArgs) (*sdk.CallToolResult, markList, error) {
	if err := s.admit(); err != nil {
		return nil, markList{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	marks, err := s.marks.ListMarks(ctx)
	if err != nil {
		return nil, markList{}, err
	}
	return nil, markList{Marks: marks}, nil
}
