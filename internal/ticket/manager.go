// Package ticket owns the signal-to-close lifecycle. The manager keeps an
// in-memory index of live tickets for fast routing and dedupe; Postgres is
// the source of truth, and its state-guarded updates back every transition
// so a close happens exactly once even across restarts or redelivery.
package ticket

import (
	"context"
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/pnl"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrLiveExists rejects a second signal for a pair that already has a
// pending or open ticket.
var ErrLiveExists = errors.New("live ticket exists for address/asset pair")

type Repository interface {
	InsertPending(ctx context.Context, sig event.SignalEvent) (*domain.Ticket, error)
	RecordEntry(ctx context.Context, ticketID string, price float64, ts time.Time) (*domain.Ticket, error)
	CloseTicket(ctx context.Context, ticketID string, price float64, ts time.Time, realized float64) (*domain.Ticket, error)
	ExpireDue(ctx context.Context, cutoff time.Time) (int64, error)
	MarkSuspect(ctx context.Context, ticketID string) error
	ListLive(ctx context.Context) ([]domain.Ticket, error)
}

type FillAudit interface {
	InsertBatch(ctx context.Context, fills []domain.FillRecord) error
}

type Marks interface {
	GetMark(ctx context.Context, asset string) (*domain.MarkSnapshot, error)
}

type Detector interface {
	Flag(features []float64) bool
}

type Publisher interface {
	PublishSignal(ctx context.Context, sig event.SignalEvent) error
	PublishClose(ctx context.Context, t domain.Ticket) error
}

type Notifier interface {
	NotifySignal(sig event.SignalEvent)
	NotifyClose(t domain.Ticket)
}

type Manager struct {
	tracer   trace.Tracer
	repo     Repository
	fills    FillAudit
	marks    Marks
	detector Detector
	bus      Publisher
	notifier Notifier

	mu     sync.Mutex
	states map[string]domain.Ticket // ticket id -> live ticket
	live   map[string]string        // "address|asset" -> ticket id
}

func NewManager(tracer trace.Tracer, repo Repository, fills FillAudit, marks Marks, detector Detector, bus Publisher, notifier Notifier) *Manager {
	return &Manager{
		tracer:   tracer,
		repo:     repo,
		fills:    fills,
		marks:    marks,
		detector: detector,
		bus:      bus,
		notifier: notifier,
		states:   make(map[string]domain.Ticket),
		live:     make(map[string]string),
	}
}

// Recover reloads pending and open tickets from storage into the in-memory
// index. Call once at startup before consuming events.
func (m *Manager) Recover(ctx context.Context) error {
	ctx, span := m.tracer.Start(ctx, "ticket.recover")
	defer span.End()

	tickets, err := m.repo.ListLive(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[string]domain.Ticket, len(tickets))
	m.live = make(map[string]string, len(tickets))
	for _, t := range tickets {
		m.states[t.ID] = t
		m.live[pairKey(t.Address, t.Asset)] = t.ID
	}
	span.SetAttributes(attribute.Int("tickets.recovered", len(tickets)))
	log.Printf("ticket manager recovered %d live tickets", len(tickets))
	return nil
}

func (m *Manager) Live(address, asset string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live[pairKey(address, asset)]
	return ok
}

// OpenTicket persists and indexes a pending ticket for the signal, then
// publishes and notifies. Publish and notify failures are logged, not
// returned: the ticket exists once the insert commits.
func (m *Manager) OpenTicket(ctx context.Context, sig event.SignalEvent) error {
	ctx, span := m.tracer.Start(ctx, "ticket.open",
		trace.WithAttributes(attribute.String("ticket.id", sig.TicketID)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(sig.Address, sig.Asset)
	if _, ok := m.live[key]; ok {
		return ErrLiveExists
	}

	t, err := m.repo.InsertPending(ctx, sig)
	if err != nil {
		return err
	}
	m.states[t.ID] = *t
	m.live[key] = t.ID

	if m.bus != nil {
		if err := m.bus.PublishSignal(ctx, sig); err != nil {
			log.Printf("ticket %s: signal publish failed: %v", t.ID, err)
		}
	}
	if m.notifier != nil {
		m.notifier.NotifySignal(sig)
	}
	log.Printf("ticket %s pending: %s %s/%s conf=%.2f", t.ID, sig.Side, sig.Address, sig.Asset, sig.Confidence)
	return nil
}

// ApplyFill routes a fill by the ticket's current state: the first fill
// opens the position, the second closes it and fixes the realized return.
// Fills for unknown or terminal tickets are dropped with a nil error so the
// transport can ack them; storage errors are returned for redelivery.
func (m *Manager) ApplyFill(ctx context.Context, fill event.FillEvent) error {
	ctx, span := m.tracer.Start(ctx, "ticket.apply-fill",
		trace.WithAttributes(attribute.String("ticket.id", fill.TicketID)))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.states[fill.TicketID]
	if !ok {
		log.Printf("fill for unknown or settled ticket %s dropped", fill.TicketID)
		return nil
	}

	m.auditFill(ctx, &t, fill)

	switch t.State {
	case domain.TicketPending:
		updated, err := m.repo.RecordEntry(ctx, t.ID, fill.Price, fill.FillTS)
		if errors.Is(err, pgx.ErrNoRows) {
			// Storage already moved the ticket on (expired by the sweeper).
			m.evictLocked(t)
			log.Printf("ticket %s no longer pending, entry fill dropped", t.ID)
			return nil
		}
		if err != nil {
			return err
		}
		updated.Suspect = updated.Suspect || t.Suspect
		m.states[t.ID] = *updated
		log.Printf("ticket %s open: entry %.6g", t.ID, fill.Price)
		return nil

	case domain.TicketOpen:
		entry := 0.0
		if t.EntryPrice != nil {
			entry = *t.EntryPrice
		}
		realized := pnl.Calculate(t.Signal(), entry, fill.Price)
		closed, err := m.repo.CloseTicket(ctx, t.ID, fill.Price, fill.FillTS, realized)
		if errors.Is(err, pgx.ErrNoRows) {
			m.evictLocked(t)
			log.Printf("ticket %s already settled, exit fill dropped", t.ID)
			return nil
		}
		if err != nil {
			return err
		}
		closed.Suspect = closed.Suspect || t.Suspect
		m.evictLocked(t)

		if m.bus != nil {
			if err := m.bus.PublishClose(ctx, *closed); err != nil {
				log.Printf("ticket %s: close publish failed: %v", t.ID, err)
			}
		}
		if m.notifier != nil {
			m.notifier.NotifyClose(*closed)
		}
		log.Printf("ticket %s closed: exit %.6g realized %.6f", t.ID, fill.Price, realized)
		return nil

	default:
		m.evictLocked(t)
		return nil
	}
}

// ExpireDue flips pending tickets past their expiry in storage and drops
// them from the index. Returns the number expired in storage.
func (m *Manager) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	ctx, span := m.tracer.Start(ctx, "ticket.expire-due")
	defer span.End()

	n, err := m.repo.ExpireDue(ctx, now)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.states {
		if t.State == domain.TicketPending && !t.ExpiresAt.After(now) {
			delete(m.states, id)
			delete(m.live, pairKey(t.Address, t.Asset))
		}
	}
	return n, nil
}

// auditFill records the fill and flags suspicious prints. Never blocks the
// lifecycle: audit and detector failures are logged and the fill proceeds.
func (m *Manager) auditFill(ctx context.Context, t *domain.Ticket, fill event.FillEvent) {
	mark := 0.0
	deviation := 0.0
	if m.marks != nil {
		if snap, err := m.marks.GetMark(ctx, t.Asset); err == nil && snap != nil && snap.Mid > 0 {
			mark = snap.Mid
			if fill.Price > 0 {
				deviation = math.Abs(fill.Price-mark) / mark
			}
		}
	}

	if m.fills != nil {
		rec := domain.FillRecord{
			TicketID:  t.ID,
			Asset:     t.Asset,
			Price:     fill.Price,
			Quantity:  fill.Quantity,
			Mark:      mark,
			Deviation: deviation,
			FillTS:    fill.FillTS,
		}
		if err := m.fills.InsertBatch(ctx, []domain.FillRecord{rec}); err != nil {
			log.Printf("ticket %s: fill audit failed: %v", t.ID, err)
		}
	}

	if m.detector != nil && mark > 0 && m.detector.Flag([]float64{deviation, fill.Quantity}) {
		t.Suspect = true
		if err := m.repo.MarkSuspect(ctx, t.ID); err != nil {
			log.Printf("ticket %s: suspect flag failed: %v", t.ID, err)
		}
		log.Printf("ticket %s: fill flagged suspect (deviation %.4f)", t.ID, deviation)
	}
}

func (m *Manager) evictLocked(t domain.Ticket) {
	delete(m.states, t.ID)
	delete(m.live, pairKey(t.Address, t.Asset))
}

func pairKey(address, asset string) string {
	return address + "|" + asset
}
