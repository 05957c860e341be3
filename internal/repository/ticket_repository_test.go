package repository

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.opentelemetry.io/otel/trace"
)

type fakePool struct {
	lastSQL   string
	lastArgs  []any
	execTag   pgconn.CommandTag
	execErr   error
	row       pgx.Row
	rows      pgx.Rows
	queryErr  error
	lastBatch *pgx.Batch
	batchErr  error
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return f.execTag, f.execErr
}

func (f *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return f.rows, f.queryErr
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.lastArgs = args
	return f.row
}

func (f *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.lastBatch = b
	return &fakeBatchResults{err: f.batchErr}
}

type fakeBatchResults struct {
	execs int
	err   error
}

func (b *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	b.execs++
	return pgconn.NewCommandTag("INSERT 0 1"), b.err
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) { return nil, b.err }
func (b *fakeBatchResults) QueryRow() pgx.Row        { return fakeRow{err: b.err} }
func (b *fakeBatchResults) Close() error             { return nil }

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assignAll(dest, r.vals)
}

type fakeRows struct {
	data [][]any
	i    int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignAll(dest, r.data[r.i-1])
}

func assignAll(dest, vals []any) error {
	if len(dest) != len(vals) {
		return errors.New("column count mismatch")
	}
	for i, v := range vals {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ticketRowVals(id, state string) []any {
	return []any{
		id, "0xabc", "BTC", "long", 0.8, "consensus", state,
		testTime, testTime.Add(15 * time.Minute),
		pgtype.Float8{}, pgtype.Timestamptz{},
		pgtype.Float8{}, pgtype.Timestamptz{},
		pgtype.Float8{}, false,
		testTime, testTime,
	}
}

func newTestSignal(t *testing.T) event.SignalEvent {
	t.Helper()
	sig, err := event.NewSignalEvent("tkt-1", "0xabc", "BTC", event.SideLong, 0.8,
		testTime, testTime, testTime.Add(15*time.Minute), "consensus", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sig
}

func TestInsertPending(t *testing.T) {
	pool := &fakePool{row: fakeRow{vals: ticketRowVals("tkt-1", "pending")}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	tk, err := repo.InsertPending(context.Background(), newTestSignal(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.ID != "tkt-1" || tk.State != domain.TicketPending {
		t.Fatalf("unexpected ticket: %+v", tk)
	}
	if !strings.Contains(pool.lastSQL, "INSERT INTO tickets") {
		t.Fatalf("unexpected sql: %s", pool.lastSQL)
	}
	if pool.lastArgs[6] != "pending" {
		t.Fatalf("expected pending state arg, got %v", pool.lastArgs[6])
	}
}

func TestRecordEntryGuardsPendingState(t *testing.T) {
	entry := 50000.0
	vals := ticketRowVals("tkt-1", "open")
	vals[9] = pgtype.Float8{Float64: entry, Valid: true}
	vals[10] = pgtype.Timestamptz{Time: testTime, Valid: true}
	pool := &fakePool{row: fakeRow{vals: vals}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	tk, err := repo.RecordEntry(context.Background(), "tkt-1", entry, testTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.State != domain.TicketOpen || tk.EntryPrice == nil || *tk.EntryPrice != entry {
		t.Fatalf("entry not recorded: %+v", tk)
	}

	var fromState string
	for _, a := range pool.lastArgs {
		if s, ok := a.(string); ok && s == "pending" {
			fromState = s
		}
	}
	if fromState != "pending" {
		t.Fatalf("expected pending state guard in args, got %v", pool.lastArgs)
	}
}

func TestCloseTicketIsConditionalOnOpen(t *testing.T) {
	realized := 0.02
	vals := ticketRowVals("tkt-1", "closed")
	vals[13] = pgtype.Float8{Float64: realized, Valid: true}
	pool := &fakePool{row: fakeRow{vals: vals}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	tk, err := repo.CloseTicket(context.Background(), "tkt-1", 51000, testTime, realized)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.State != domain.TicketClosed || tk.RealizedPnL == nil || *tk.RealizedPnL != realized {
		t.Fatalf("close not recorded: %+v", tk)
	}

	var sawGuard bool
	for _, a := range pool.lastArgs {
		if s, ok := a.(string); ok && s == "open" {
			sawGuard = true
		}
	}
	if !sawGuard {
		t.Fatalf("expected open state guard in args, got %v", pool.lastArgs)
	}
}

func TestCloseTicketAlreadyClosed(t *testing.T) {
	pool := &fakePool{row: fakeRow{err: pgx.ErrNoRows}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	_, err := repo.CloseTicket(context.Background(), "tkt-1", 51000, testTime, 0.02)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows for second close, got %v", err)
	}
}

func TestExpireDueCountsRows(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("UPDATE 3")}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	n, err := repo.ExpireDue(context.Background(), testTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 expired, got %d", n)
	}
	if !strings.Contains(pool.lastSQL, "expires_at <=") {
		t.Fatalf("expected expiry cutoff in sql: %s", pool.lastSQL)
	}
}

func TestMarkSuspectMissingTicket(t *testing.T) {
	pool := &fakePool{execTag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	err := repo.MarkSuspect(context.Background(), "nope")
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestListTicketsBuildsFilter(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{data: [][]any{ticketRowVals("tkt-1", "closed")}}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	tickets, err := repo.ListTickets(context.Background(), domain.TicketFilter{State: domain.TicketClosed, Address: "0xabc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "tkt-1" {
		t.Fatalf("unexpected tickets: %+v", tickets)
	}
	if !strings.Contains(pool.lastSQL, "state = $1") || !strings.Contains(pool.lastSQL, "address = $2") {
		t.Fatalf("filter not built: %s", pool.lastSQL)
	}
	if pool.lastArgs[len(pool.lastArgs)-1] != 100 {
		t.Fatalf("expected default limit 100, got %v", pool.lastArgs)
	}
}

func TestListLiveStates(t *testing.T) {
	pool := &fakePool{rows: &fakeRows{data: [][]any{
		ticketRowVals("tkt-1", "pending"),
		ticketRowVals("tkt-2", "open"),
	}}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	tickets, err := repo.ListLive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tickets) != 2 || tickets[0].State != domain.TicketPending || tickets[1].State != domain.TicketOpen {
		t.Fatalf("unexpected live tickets: %+v", tickets)
	}
}

func TestSummaryScan(t *testing.T) {
	pool := &fakePool{row: fakeRow{vals: []any{5, 3, 2, 0.12, 0.024, 0.08, -0.05}}}
	repo := NewTicketRepository(pool, trace.NewNoopTracerProvider().Tracer("test"))

	sum, err := repo.Summary(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Closed != 5 || sum.Wins != 3 || sum.Losses != 2 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.TotalReturn != 0.12 || sum.BestReturn != 0.08 || sum.WorstReturn != -0.05 {
		t.Fatalf("unexpected returns: %+v", sum)
	}
}

func TestScanTicketRowNullables(t *testing.T) {
	tk, err := scanTicketRow(fakeRow{vals: ticketRowVals("tkt-1", "pending")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.EntryPrice != nil || tk.EntryTS != nil || tk.ExitPrice != nil || tk.RealizedPnL != nil {
		t.Fatalf("null columns should map to nil pointers: %+v", tk)
	}

	vals := ticketRowVals("tkt-1", "closed")
	vals[9] = pgtype.Float8{Float64: 50000, Valid: true}
	vals[11] = pgtype.Float8{Float64: 51000, Valid: true}
	vals[13] = pgtype.Float8{Float64: 0.02, Valid: true}
	tk, err = scanTicketRow(fakeRow{vals: vals})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tk.EntryPrice == nil || *tk.EntryPrice != 50000 || *tk.ExitPrice != 51000 || *tk.RealizedPnL != 0.02 {
		t.Fatalf("valid columns not mapped: %+v", tk)
	}
	if tk.SignalTS.Location() != time.UTC {
		t.Fatalf("timestamps not normalized to UTC: %+v", tk)
	}
}
