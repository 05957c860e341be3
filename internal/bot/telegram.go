package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/service"

	"github.com/jackc/pgx/v5"
	tele "gopkg.in/telebot.v3"
)

// Advisor answers free-form desk questions. Nil disables /ask.
type Advisor interface {
	Ask(ctx context.Context, chatKey, question string) (string, error)
}

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramBot surfaces the desk over Telegram: query commands plus push
// notifications for emitted signals and closed tickets.
type TelegramBot struct {
	bot     *tele.Bot
	send    sender
	chat    tele.Recipient
	desk    *service.DeskService
	advisor Advisor
}

// StartTelegramBot creates and starts the bot, or returns nil when no token
// is configured. All notification methods are safe on a nil receiver, so the
// result can be wired into the ticket manager unconditionally.
func StartTelegramBot(desk *service.DeskService, advisor Advisor) *TelegramBot {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	tb := &TelegramBot{bot: b, send: b, desk: desk, advisor: advisor}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			tb.chat = tele.ChatID(id)
		} else {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID %q, push notifications disabled", raw)
		}
	} else {
		log.Println("Warning: TELEGRAM_CHAT_ID not set, push notifications disabled")
	}

	tb.registerHandlers()
	log.Println("Telegram bot started")
	go b.Start()
	return tb
}

func (b *TelegramBot) registerHandlers() {
	b.bot.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.bot.Handle("/open", func(c tele.Context) error {
		return c.Send(b.openReply(context.Background(), c.Args()))
	})

	b.bot.Handle("/pnl", func(c tele.Context) error {
		return c.Send(b.pnlReply(context.Background(), c.Args()))
	})

	b.bot.Handle("/ticket", func(c tele.Context) error {
		return c.Send(b.ticketReply(context.Background(), c.Args()))
	})

	b.bot.Handle("/ask", func(c tele.Context) error {
		chatKey := strconv.FormatInt(c.Chat().ID, 10)
		return c.Send(b.askReply(context.Background(), chatKey, c.Message().Payload))
	})
}

func (b *TelegramBot) openReply(ctx context.Context, args []string) string {
	address := ""
	if len(args) > 0 {
		address = args[0]
	}
	var views []service.TicketView
	for _, state := range []domain.TicketState{domain.TicketPending, domain.TicketOpen} {
		batch, err := b.desk.ListTickets(ctx, domain.TicketFilter{State: state, Address: address, Limit: 50})
		if err != nil {
			return fmt.Sprintf("Error listing tickets: %v", err)
		}
		views = append(views, batch...)
	}
	if len(views) == 0 {
		return "No live tickets"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d live ticket(s)", len(views))
	for _, v := range views {
		fmt.Fprintf(&sb, "\n%s  %s %s %s", v.ID, v.State, strings.ToUpper(string(v.Side)), v.Asset)
		if v.EntryPrice != nil {
			fmt.Fprintf(&sb, " @ %.6g", *v.EntryPrice)
		}
		if v.UnrealizedPnL != nil {
			fmt.Fprintf(&sb, " (%+.2f%%)", *v.UnrealizedPnL*100)
		}
	}
	return sb.String()
}

func (b *TelegramBot) pnlReply(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /pnl <address>"
	}
	summary, err := b.desk.Summary(ctx, args[0])
	if err != nil {
		return fmt.Sprintf("Error loading summary: %v", err)
	}
	if summary.Closed == 0 {
		return fmt.Sprintf("No closed tickets for %s", summary.Address)
	}
	return fmt.Sprintf(
		"P&L for %s\nClosed: %d (%d wins / %d losses)\nTotal: %+.2f%%\nMean: %+.2f%%\nBest: %+.2f%%  Worst: %+.2f%%",
		summary.Address, summary.Closed, summary.Wins, summary.Losses,
		summary.TotalReturn*100, summary.MeanReturn*100, summary.BestReturn*100, summary.WorstReturn*100,
	)
}

func (b *TelegramBot) ticketReply(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /ticket <id>"
	}
	view, err := b.desk.GetTicket(ctx, args[0])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Sprintf("No ticket with id %s", args[0])
		}
		return fmt.Sprintf("Error loading ticket: %v", err)
	}
	return formatTicket(view)
}

func (b *TelegramBot) askReply(ctx context.Context, chatKey, question string) string {
	if b.advisor == nil {
		return "Advisor is not configured"
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "Usage: /ask <question>"
	}
	answer, err := b.advisor.Ask(ctx, chatKey, question)
	if err != nil {
		return fmt.Sprintf("Advisor error: %v", err)
	}
	return answer
}

func formatTicket(v *service.TicketView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket %s\n%s %s for %s\nState: %s\nConfidence: %.2f",
		v.ID, strings.ToUpper(string(v.Side)), v.Asset, v.Address, v.State, v.Confidence)
	if v.EntryPrice != nil {
		fmt.Fprintf(&sb, "\nEntry: %.6g", *v.EntryPrice)
	}
	if v.ExitPrice != nil {
		fmt.Fprintf(&sb, "\nExit: %.6g", *v.ExitPrice)
	}
	if v.RealizedPnL != nil {
		fmt.Fprintf(&sb, "\nRealized: %+.2f%%", *v.RealizedPnL*100)
	}
	if v.UnrealizedPnL != nil {
		fmt.Fprintf(&sb, "\nUnrealized: %+.2f%%", *v.UnrealizedPnL*100)
	}
	if v.Suspect {
		sb.WriteString("\nFlagged suspect by the fill monitor")
	}
	return sb.String()
}

// NotifySignal pushes an emitted signal to the configured chat.
func (b *TelegramBot) NotifySignal(sig event.SignalEvent) {
	if b == nil || b.chat == nil {
		return
	}
	b.deliver(signalMessage(sig))
}

// NotifyClose pushes a closed ticket to the configured chat.
func (b *TelegramBot) NotifyClose(t domain.Ticket) {
	if b == nil || b.chat == nil {
		return
	}
	b.deliver(closeMessage(t))
}

// deliver sends off the caller's goroutine: the ticket manager notifies
// while holding its lock, and a slow Telegram round trip must not stall it.
func (b *TelegramBot) deliver(msg string) {
	go func() {
		if _, err := b.send.Send(b.chat, msg); err != nil {
			log.Printf("telegram notification failed: %v", err)
		}
	}()
}

func signalMessage(sig event.SignalEvent) string {
	msg := fmt.Sprintf(
		"New signal %s\n%s %s for %s\nConfidence: %.2f\nExpires: %s",
		sig.TicketID, strings.ToUpper(string(sig.Side)), sig.Asset, sig.Address,
		sig.Confidence, sig.ExpiresAt.UTC().Format("15:04:05 MST"),
	)
	if sig.Reason != "" {
		msg += "\nReason: " + sig.Reason
	}
	return msg
}

func closeMessage(t domain.Ticket) string {
	msg := fmt.Sprintf("Closed %s\n%s %s for %s", t.ID, strings.ToUpper(string(t.Side)), t.Asset, t.Address)
	if t.EntryPrice != nil && t.ExitPrice != nil {
		msg += fmt.Sprintf("\nEntry %.6g, exit %.6g", *t.EntryPrice, *t.ExitPrice)
	}
	if t.RealizedPnL != nil {
		msg += fmt.Sprintf("\nRealized: %+.2f%%", *t.RealizedPnL*100)
	}
	return msg
}
