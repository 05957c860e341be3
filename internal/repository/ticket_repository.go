package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id           TEXT PRIMARY KEY,
    address      TEXT        NOT NULL,
    asset        TEXT        NOT NULL,
    side         TEXT        NOT NULL,
    confidence   DOUBLE PRECISION NOT NULL,
    reason       TEXT        NOT NULL DEFAULT '',
    state        TEXT        NOT NULL,
    signal_ts    TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    entry_price  DOUBLE PRECISION,
    entry_ts     TIMESTAMPTZ,
    exit_price   DOUBLE PRECISION,
    exit_ts      TIMESTAMPTZ,
    realized_pnl DOUBLE PRECISION,
    suspect      BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tickets_state ON tickets (state);

CREATE INDEX IF NOT EXISTS idx_tickets_address_asset
    ON tickets (address, asset, created_at DESC);
`

const ticketCols = `id, address, asset, side, confidence, reason, state,
       signal_ts, expires_at, entry_price, entry_ts, exit_price, exit_ts,
       realized_pnl, suspect, created_at, updated_at`

type TicketRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTicketRepository(pool PgxPool, tracer trace.Tracer) *TicketRepository {
	return &TicketRepository{pool: pool, tracer: tracer}
}

func (r *TicketRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ticket-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createTicketsTable)
	return err
}

// InsertPending persists a freshly emitted signal as a pending ticket.
func (r *TicketRepository) InsertPending(ctx context.Context, sig event.SignalEvent) (*domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.insert-pending")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
INSERT INTO tickets (id, address, asset, side, confidence, reason, state, signal_ts, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+ticketCols,
		sig.TicketID,
		sig.Address,
		sig.Asset,
		string(sig.Side),
		sig.Confidence,
		sig.Reason,
		string(domain.TicketPending),
		sig.SignalTS.UTC(),
		sig.ExpiresAt.UTC(),
	)
	return scanTicketRow(row)
}

// RecordEntry transitions a pending ticket to open. Returns pgx.ErrNoRows
// when the ticket is missing or no longer pending.
func (r *TicketRepository) RecordEntry(ctx context.Context, ticketID string, price float64, ts time.Time) (*domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.record-entry")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
UPDATE tickets
SET state = $2,
    entry_price = $3,
    entry_ts = $4,
    updated_at = NOW()
WHERE id = $1
  AND state = $5
RETURNING `+ticketCols,
		ticketID, string(domain.TicketOpen), price, ts.UTC(), string(domain.TicketPending))
	return scanTicketRow(row)
}

// CloseTicket finalizes an open ticket with its exit fill and realized
// return. The state guard makes the close exactly-once: a second close
// matches no row and surfaces pgx.ErrNoRows.
func (r *TicketRepository) CloseTicket(ctx context.Context, ticketID string, price float64, ts time.Time, realized float64) (*domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.close")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
UPDATE tickets
SET state = $2,
    exit_price = $3,
    exit_ts = $4,
    realized_pnl = $5,
    updated_at = NOW()
WHERE id = $1
  AND state = $6
RETURNING `+ticketCols,
		ticketID, string(domain.TicketClosed), price, ts.UTC(), realized, string(domain.TicketOpen))
	return scanTicketRow(row)
}

// ExpireDue flips pending tickets whose expiry passed. Returns the number of
// tickets expired.
func (r *TicketRepository) ExpireDue(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.expire-due")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `
UPDATE tickets
SET state = $1,
    updated_at = NOW()
WHERE state = $2
  AND expires_at <= $3`,
		string(domain.TicketExpired), string(domain.TicketPending), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *TicketRepository) MarkSuspect(ctx context.Context, ticketID string) error {
	_, span := r.tracer.Start(ctx, "ticket-repo.mark-suspect")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `UPDATE tickets SET suspect = TRUE, updated_at = NOW() WHERE id = $1`, ticketID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TicketRepository) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.get")
	defer span.End()

	row := r.pool.QueryRow(ctx, `SELECT `+ticketCols+` FROM tickets WHERE id = $1`, ticketID)
	return scanTicketRow(row)
}

func (r *TicketRepository) ListTickets(ctx context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.list")
	defer span.End()

	var conds []string
	var args []any
	if f.State != "" {
		args = append(args, string(f.State))
		conds = append(conds, fmt.Sprintf("state = $%d", len(args)))
	}
	if f.Address != "" {
		args = append(args, f.Address)
		conds = append(conds, fmt.Sprintf("address = $%d", len(args)))
	}
	if f.Asset != "" {
		args = append(args, f.Asset)
		conds = append(conds, fmt.Sprintf("asset = $%d", len(args)))
	}

	q := `SELECT ` + ticketCols + ` FROM tickets`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

// ListLive returns pending and open tickets oldest-first, used to rebuild
// the in-memory index after a restart.
func (r *TicketRepository) ListLive(ctx context.Context) ([]domain.Ticket, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.list-live")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
SELECT `+ticketCols+`
FROM tickets
WHERE state IN ($1, $2)
ORDER BY created_at ASC`,
		string(domain.TicketPending), string(domain.TicketOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []domain.Ticket
	for rows.Next() {
		t, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, *t)
	}
	return tickets, rows.Err()
}

func (r *TicketRepository) Summary(ctx context.Context, address string) (*domain.PnLSummary, error) {
	_, span := r.tracer.Start(ctx, "ticket-repo.summary")
	defer span.End()

	row := r.pool.QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE realized_pnl > 0),
       COUNT(*) FILTER (WHERE realized_pnl < 0),
       COALESCE(SUM(realized_pnl), 0),
       COALESCE(AVG(realized_pnl), 0),
       COALESCE(MAX(realized_pnl), 0),
       COALESCE(MIN(realized_pnl), 0)
FROM tickets
WHERE address = $1
  AND state = $2`,
		address, string(domain.TicketClosed))

	out := domain.PnLSummary{Address: address}
	if err := row.Scan(&out.Closed, &out.Wins, &out.Losses, &out.TotalReturn, &out.MeanReturn, &out.BestReturn, &out.WorstReturn); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanTicketRow(s scanner) (*domain.Ticket, error) {
	var out domain.Ticket
	var side, state string
	var entryPrice, exitPrice, realized pgtype.Float8
	var entryTS, exitTS pgtype.Timestamptz

	if err := s.Scan(
		&out.ID,
		&out.Address,
		&out.Asset,
		&side,
		&out.Confidence,
		&out.Reason,
		&state,
		&out.SignalTS,
		&out.ExpiresAt,
		&entryPrice,
		&entryTS,
		&exitPrice,
		&exitTS,
		&realized,
		&out.Suspect,
		&out.CreatedAt,
		&out.UpdatedAt,
	); err != nil {
		return nil, err
	}
	out.Side = event.Side(side)
	out.State = domain.TicketState(state)
	out.SignalTS = out.SignalTS.UTC()
	out.ExpiresAt = out.ExpiresAt.UTC()
	out.CreatedAt = out.CreatedAt.UTC()
	out.UpdatedAt = out.UpdatedAt.UTC()

	if entryPrice.Valid {
		v := entryPrice.Float64
		out.EntryPrice = &v
	}
	if entryTS.Valid {
		t := entryTS.Time.UTC()
		out.EntryTS = &t
	}
	if exitPrice.Valid {
		v := exitPrice.Float64
		out.ExitPrice = &v
	}
	if exitTS.Valid {
		t := exitTS.Time.UTC()
		out.ExitTS = &t
	}
	if realized.Valid {
		v := realized.Float64
		out.RealizedPnL = &v
	}
	return &out, nil
}
