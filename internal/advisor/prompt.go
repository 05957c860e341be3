package advisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/service"
)

const deskPhilosophy = `You are the desk advisor for an automated signal-following trading desk. Your role is to interpret the desk's own tickets, marks, and realized results, NOT to invent trade ideas.

Conventions:
- Returns are fractions of entry price. Quote them as percentages.
- A SUSPECT flag means the fill monitor saw an abnormal print on that ticket. Call it out whenever the ticket comes up.
- Confidence below 0.5 deserves skepticism even when the position is green.

Rules:
- Always reference specific tickets and numbers when making observations.
- Never fabricate data. If something is not in the desk context, say so.
- Keep responses concise and actionable. You are talking via Telegram.
- Do not provide financial advice disclaimers on every message. The user understands this is informational.
- When asked about an address, summarize: live exposure, realized track record, and anything unusual.
- If the desk has no tickets for an asset or address, say so honestly rather than speculating.`

func BuildSystemPrompt(deskContext string) string {
	var sb strings.Builder
	sb.WriteString(deskPhilosophy)
	sb.WriteString("\n\n--- LIVE DESK DATA (as of ")
	sb.WriteString(time.Now().UTC().Format(time.RFC822))
	sb.WriteString(") ---\n")
	sb.WriteString(deskContext)
	return sb.String()
}

func FormatDeskContext(marks []*domain.MarkSnapshot, live, closed []service.TicketView, summaries []*domain.PnLSummary) string {
	var sb strings.Builder

	if len(marks) > 0 {
		sb.WriteString("\nCurrent Marks:\n")
		for _, m := range marks {
			sb.WriteString(fmt.Sprintf("  %s: %.6g\n", m.Asset, m.Mid))
		}
	}

	if len(live) > 0 {
		sb.WriteString("\nLive Tickets:\n")
		for _, v := range live {
			sb.WriteString("  " + ticketLine(v) + "\n")
		}
	}

	if len(closed) > 0 {
		sb.WriteString("\nRecent Closes:\n")
		for _, v := range closed {
			sb.WriteString("  " + ticketLine(v) + "\n")
		}
	}

	if len(summaries) > 0 {
		sb.WriteString("\nRealized Track Record:\n")
		for _, s := range summaries {
			sb.WriteString(fmt.Sprintf("  %s: %d closed, %d wins / %d losses, total %+.2f%%, mean %+.2f%%\n",
				s.Address, s.Closed, s.Wins, s.Losses, s.TotalReturn*100, s.MeanReturn*100))
		}
	}

	if sb.Len() == 0 {
		return "No desk data currently available."
	}
	return sb.String()
}

func ticketLine(v service.TicketView) string {
	line := fmt.Sprintf("%s %s %s %s addr=%s conf=%.2f",
		v.ID, v.State, strings.ToUpper(string(v.Side)), v.Asset, v.Address, v.Confidence)
	if v.EntryPrice != nil {
		line += fmt.Sprintf(" entry=%.6g", *v.EntryPrice)
	}
	if v.ExitPrice != nil {
		line += fmt.Sprintf(" exit=%.6g", *v.ExitPrice)
	}
	if v.UnrealizedPnL != nil {
		line += fmt.Sprintf(" unrealized=%+.2f%%", *v.UnrealizedPnL*100)
	}
	if v.RealizedPnL != nil {
		line += fmt.Sprintf(" realized=%+.2f%%", *v.RealizedPnL*100)
	}
	if v.Suspect {
		line += " SUSPECT"
	}
	return line
}
