package service

import (
	"context"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/pnl"

	"go.opentelemetry.io/otel/trace"
)

type TicketReader interface {
	GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error)
	Summary(ctx context.Context, address string) (*domain.PnLSummary, error)
}

type ScoreReader interface {
	Recent(ctx context.Context, address, asset string, since time.Time, limit int) ([]event.ScoreEvent, error)
}

type MarkReader interface {
	GetMark(ctx context.Context, asset string) (*domain.MarkSnapshot, error)
}

// TicketView is a ticket decorated with the current mark and, for open
// positions, the return it would realize at that mark.
type TicketView struct {
	domain.Ticket
	Mark          *float64 `json:"mark,omitempty"`
	UnrealizedPnL *float64 `json:"unrealized_pnl,omitempty"`
}

// DeskOverview is the at-a-glance state for one address: everything still
// live plus the realized track record.
type DeskOverview struct {
	Address string             `json:"address"`
	Live    []TicketView       `json:"live"`
	Summary *domain.PnLSummary `json:"summary"`
}

// DeskService is the read side of the desk: tickets, summaries, and recent
// scores, decorated with marks for anything still open.
type DeskService struct {
	tracer  trace.Tracer
	tickets TicketReader
	scores  ScoreReader
	marks   MarkReader
	now     func() time.Time
}

func NewDeskService(tracer trace.Tracer, tickets TicketReader, scores ScoreReader, marks MarkReader) *DeskService {
	return &DeskService{
		tracer:  tracer,
		tickets: tickets,
		scores:  scores,
		marks:   marks,
		now:     time.Now,
	}
}

func (s *DeskService) GetTicket(ctx context.Context, ticketID string) (*TicketView, error) {
	_, span := s.tracer.Start(ctx, "desk-service.get-ticket")
	defer span.End()

	t, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	view := s.decorate(ctx, *t)
	return &view, nil
}

func (s *DeskService) ListTickets(ctx context.Context, f domain.TicketFilter) ([]TicketView, error) {
	_, span := s.tracer.Start(ctx, "desk-service.list-tickets")
	defer span.End()

	tickets, err := s.tickets.ListTickets(ctx, f)
	if err != nil {
		return nil, err
	}
	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, s.decorate(ctx, t))
	}
	return views, nil
}

func (s *DeskService) Summary(ctx context.Context, address string) (*domain.PnLSummary, error) {
	_, span := s.tracer.Start(ctx, "desk-service.summary")
	defer span.End()

	return s.tickets.Summary(ctx, address)
}

// Overview collects the live book and the realized summary for an address.
func (s *DeskService) Overview(ctx context.Context, address string) (*DeskOverview, error) {
	_, span := s.tracer.Start(ctx, "desk-service.overview")
	defer span.End()

	overview := &DeskOverview{Address: address}
	for _, state := range []domain.TicketState{domain.TicketPending, domain.TicketOpen} {
		tickets, err := s.tickets.ListTickets(ctx, domain.TicketFilter{State: state, Address: address})
		if err != nil {
			return nil, err
		}
		for _, t := range tickets {
			overview.Live = append(overview.Live, s.decorate(ctx, t))
		}
	}

	summary, err := s.tickets.Summary(ctx, address)
	if err != nil {
		return nil, err
	}
	overview.Summary = summary
	return overview, nil
}

// RecentScores returns scores for a pair seen within the window, oldest
// first.
func (s *DeskService) RecentScores(ctx context.Context, address, asset string, window time.Duration, limit int) ([]event.ScoreEvent, error) {
	_, span := s.tracer.Start(ctx, "desk-service.recent-scores")
	defer span.End()

	return s.scores.Recent(ctx, address, asset, s.now().Add(-window), limit)
}

// decorate attaches the current mark and, for open tickets, the unrealized
// return at that mark. A missing mark leaves the view bare rather than
// failing the read.
func (s *DeskService) decorate(ctx context.Context, t domain.Ticket) TicketView {
	view := TicketView{Ticket: t}
	if t.State.Terminal() || s.marks == nil {
		return view
	}
	snap, err := s.marks.GetMark(ctx, t.Asset)
	if err != nil || snap == nil {
		return view
	}
	mark := snap.Mid
	view.Mark = &mark
	if t.State == domain.TicketOpen && t.EntryPrice != nil {
		u := pnl.Calculate(t.Signal(), *t.EntryPrice, mark)
		view.UnrealizedPnL = &u
	}
	return view
}
