package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
	tele "gopkg.in/telebot.v3"
)

var botTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type stubTickets struct {
	ticket  *domain.Ticket
	lists   map[domain.TicketState][]domain.Ticket
	summary *domain.PnLSummary
	err     error
}

func (s *stubTickets) GetTicket(_ context.Context, _ string) (*domain.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.ticket == nil {
		return nil, pgx.ErrNoRows
	}
	return s.ticket, nil
}

func (s *stubTickets) ListTickets(_ context.Context, f domain.TicketFilter) ([]domain.Ticket, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.lists[f.State], nil
}

func (s *stubTickets) Summary(_ context.Context, address string) (*domain.PnLSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.summary != nil {
		return s.summary, nil
	}
	return &domain.PnLSummary{Address: address}, nil
}

type stubScores struct{}

func (stubScores) Recent(_ context.Context, _, _ string, _ time.Time, _ int) ([]event.ScoreEvent, error) {
	return nil, nil
}

type stubMarks struct {
	snaps map[string]*domain.MarkSnapshot
}

func (s *stubMarks) GetMark(_ context.Context, asset string) (*domain.MarkSnapshot, error) {
	snap, ok := s.snaps[asset]
	if !ok {
		return nil, errors.New("no mark")
	}
	return snap, nil
}

type stubAdvisor struct {
	answer  string
	err     error
	lastKey string
	lastQ   string
}

func (s *stubAdvisor) Ask(_ context.Context, chatKey, question string) (string, error) {
	s.lastKey = chatKey
	s.lastQ = question
	return s.answer, s.err
}

type sentMessage struct {
	to   tele.Recipient
	text string
}

type fakeSender struct {
	sent chan sentMessage
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sent <- sentMessage{to: to, text: what.(string)}
	return &tele.Message{}, nil
}

func newTestBot(tickets *stubTickets, marks *stubMarks, advisor Advisor) *TelegramBot {
	tracer := trace.NewNoopTracerProvider().Tracer("bot-test")
	if marks == nil {
		marks = &stubMarks{}
	}
	return &TelegramBot{
		desk:    service.NewDeskService(tracer, tickets, stubScores{}, marks),
		advisor: advisor,
	}
}

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if tb := StartTelegramBot(nil, nil); tb != nil {
		t.Fatal("expected nil bot without token")
	}
}

func TestNilBotNotificationsAreSafe(t *testing.T) {
	var tb *TelegramBot
	tb.NotifySignal(event.SignalEvent{TicketID: "tk-1"})
	tb.NotifyClose(domain.Ticket{ID: "tk-1"})
}

func TestOpenReplyListsLiveTickets(t *testing.T) {
	entry := 50000.0
	tickets := &stubTickets{lists: map[domain.TicketState][]domain.Ticket{
		domain.TicketPending: {{ID: "tk-p", Address: "0xabc", Asset: "ETH", Side: event.SideShort, State: domain.TicketPending}},
		domain.TicketOpen: {{
			ID: "tk-o", Address: "0xabc", Asset: "BTC", Side: event.SideLong,
			State: domain.TicketOpen, EntryPrice: &entry,
		}},
	}}
	marks := &stubMarks{snaps: map[string]*domain.MarkSnapshot{
		"BTC": {Asset: "BTC", Mid: 51000, UpdatedUnix: botTime.Unix()},
	}}
	tb := newTestBot(tickets, marks, nil)

	reply := tb.openReply(context.Background(), nil)
	if !strings.HasPrefix(reply, "2 live ticket(s)") {
		t.Fatalf("unexpected reply: %s", reply)
	}
	if !strings.Contains(reply, "tk-o  open LONG BTC @ 50000 (+2.00%)") {
		t.Errorf("open ticket line missing: %s", reply)
	}
	if !strings.Contains(reply, "tk-p  pending SHORT ETH") {
		t.Errorf("pending ticket line missing: %s", reply)
	}
}

func TestOpenReplyEmpty(t *testing.T) {
	tb := newTestBot(&stubTickets{}, nil, nil)
	if reply := tb.openReply(context.Background(), []string{"0xabc"}); reply != "No live tickets" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestPnlReply(t *testing.T) {
	tb := newTestBot(&stubTickets{summary: &domain.PnLSummary{
		Address: "0xabc", Closed: 4, Wins: 3, Losses: 1,
		TotalReturn: 0.12, MeanReturn: 0.03, BestReturn: 0.08, WorstReturn: -0.02,
	}}, nil, nil)

	if reply := tb.pnlReply(context.Background(), nil); reply != "Usage: /pnl <address>" {
		t.Errorf("unexpected usage reply: %s", reply)
	}

	reply := tb.pnlReply(context.Background(), []string{"0xabc"})
	if !strings.Contains(reply, "Closed: 4 (3 wins / 1 losses)") {
		t.Errorf("counts missing: %s", reply)
	}
	if !strings.Contains(reply, "Total: +12.00%") || !strings.Contains(reply, "Worst: -2.00%") {
		t.Errorf("returns missing: %s", reply)
	}
}

func TestPnlReplyNoHistory(t *testing.T) {
	tb := newTestBot(&stubTickets{}, nil, nil)
	reply := tb.pnlReply(context.Background(), []string{"0xnew"})
	if reply != "No closed tickets for 0xnew" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestTicketReply(t *testing.T) {
	entry, exit, realized := 50000.0, 51000.0, 0.02
	exitTS := botTime.Add(10 * time.Minute)
	tb := newTestBot(&stubTickets{ticket: &domain.Ticket{
		ID: "tk-1", Address: "0xabc", Asset: "BTC", Side: event.SideLong,
		Confidence: 0.82, State: domain.TicketClosed,
		EntryPrice: &entry, ExitPrice: &exit, ExitTS: &exitTS, RealizedPnL: &realized,
	}}, nil, nil)

	reply := tb.ticketReply(context.Background(), []string{"tk-1"})
	for _, want := range []string{"Ticket tk-1", "LONG BTC for 0xabc", "State: closed", "Entry: 50000", "Exit: 51000", "Realized: +2.00%"} {
		if !strings.Contains(reply, want) {
			t.Errorf("missing %q in reply: %s", want, reply)
		}
	}
}

func TestTicketReplyNotFound(t *testing.T) {
	tb := newTestBot(&stubTickets{}, nil, nil)
	if reply := tb.ticketReply(context.Background(), []string{"ghost"}); reply != "No ticket with id ghost" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestAskReply(t *testing.T) {
	advisor := &stubAdvisor{answer: "hold the position"}
	tb := newTestBot(&stubTickets{}, nil, advisor)

	if reply := tb.askReply(context.Background(), "42", "  "); reply != "Usage: /ask <question>" {
		t.Errorf("unexpected usage reply: %s", reply)
	}
	if reply := tb.askReply(context.Background(), "42", "what now?"); reply != "hold the position" {
		t.Errorf("unexpected answer: %s", reply)
	}
	if advisor.lastKey != "42" || advisor.lastQ != "what now?" {
		t.Errorf("advisor got key=%q question=%q", advisor.lastKey, advisor.lastQ)
	}

	tb.advisor = &stubAdvisor{err: errors.New("model offline")}
	if reply := tb.askReply(context.Background(), "42", "what now?"); !strings.Contains(reply, "model offline") {
		t.Errorf("expected advisor error surfaced, got: %s", reply)
	}

	tb.advisor = nil
	if reply := tb.askReply(context.Background(), "42", "what now?"); reply != "Advisor is not configured" {
		t.Errorf("unexpected reply: %s", reply)
	}
}

func TestNotifySignalDeliversToChat(t *testing.T) {
	sender := &fakeSender{sent: make(chan sentMessage, 1)}
	tb := &TelegramBot{send: sender, chat: tele.ChatID(42)}

	sig := event.SignalEvent{
		TicketID: "tk-1", Address: "0xabc", Asset: "BTC", Side: event.SideLong,
		Confidence: 0.82, ExpiresAt: botTime.Add(15 * time.Minute), Reason: "consensus long",
	}
	tb.NotifySignal(sig)

	select {
	case got := <-sender.sent:
		if got.to.Recipient() != "42" {
			t.Errorf("unexpected recipient: %s", got.to.Recipient())
		}
		for _, want := range []string{"New signal tk-1", "LONG BTC for 0xabc", "Confidence: 0.82", "12:15:00 UTC", "Reason: consensus long"} {
			if !strings.Contains(got.text, want) {
				t.Errorf("missing %q in message: %s", want, got.text)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestNotifyCloseDeliversToChat(t *testing.T) {
	sender := &fakeSender{sent: make(chan sentMessage, 1)}
	tb := &TelegramBot{send: sender, chat: tele.ChatID(42)}

	entry, exit, realized := 3500.0, 3430.0, 0.02
	tb.NotifyClose(domain.Ticket{
		ID: "tk-2", Address: "0xabc", Asset: "ETH", Side: event.SideShort,
		State: domain.TicketClosed, EntryPrice: &entry, ExitPrice: &exit, RealizedPnL: &realized,
	})

	select {
	case got := <-sender.sent:
		for _, want := range []string{"Closed tk-2", "SHORT ETH for 0xabc", "Entry 3500, exit 3430", "Realized: +2.00%"} {
			if !strings.Contains(got.text, want) {
				t.Errorf("missing %q in message: %s", want, got.text)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never delivered")
	}
}

func TestNotifySkipsWithoutChat(t *testing.T) {
	sender := &fakeSender{sent: make(chan sentMessage, 1)}
	tb := &TelegramBot{send: sender}

	tb.NotifySignal(event.SignalEvent{TicketID: "tk-1"})

	select {
	case <-sender.sent:
		t.Fatal("expected no delivery without a configured chat")
	case <-time.After(50 * time.Millisecond):
	}
}
