package advisor

import (
	"strings"
	"testing"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"
	"github.com/fzheng/SigmaPilot/internal/service"
)

func TestBuildSystemPromptContainsPhilosophy(t *testing.T) {
	prompt := BuildSystemPrompt("some context")
	if !strings.Contains(prompt, "desk advisor") {
		t.Fatal("expected desk philosophy in prompt")
	}
	if !strings.Contains(prompt, "SUSPECT flag") {
		t.Fatal("expected suspect convention in prompt")
	}
	if !strings.Contains(prompt, "LIVE DESK DATA") {
		t.Fatal("expected desk data header in prompt")
	}
	if !strings.Contains(prompt, "some context") {
		t.Fatal("expected desk context in prompt")
	}
}

func TestFormatDeskContextFullBook(t *testing.T) {
	entry, unrealized := 50000.0, 0.02
	exit, realized := 3430.0, -0.015

	marks := []*domain.MarkSnapshot{{Asset: "BTC", Mid: 51000}}
	live := []service.TicketView{{
		Ticket: domain.Ticket{
			ID: "tk-1", Address: "0xabc", Asset: "BTC", Side: event.SideLong,
			Confidence: 0.82, State: domain.TicketOpen, EntryPrice: &entry, Suspect: true,
		},
		UnrealizedPnL: &unrealized,
	}}
	closed := []service.TicketView{{
		Ticket: domain.Ticket{
			ID: "tk-2", Address: "0xabc", Asset: "ETH", Side: event.SideShort,
			Confidence: 0.6, State: domain.TicketClosed, ExitPrice: &exit, RealizedPnL: &realized,
		},
	}}
	summaries := []*domain.PnLSummary{{Address: "0xabc", Closed: 4, Wins: 3, Losses: 1, TotalReturn: 0.12, MeanReturn: 0.03}}

	ctx := FormatDeskContext(marks, live, closed, summaries)
	for _, want := range []string{
		"BTC: 51000",
		"tk-1 open LONG BTC addr=0xabc conf=0.82 entry=50000 unrealized=+2.00% SUSPECT",
		"tk-2 closed SHORT ETH addr=0xabc conf=0.60 exit=3430 realized=-1.50%",
		"0xabc: 4 closed, 3 wins / 1 losses, total +12.00%, mean +3.00%",
	} {
		if !strings.Contains(ctx, want) {
			t.Errorf("missing %q in context:\n%s", want, ctx)
		}
	}
}

func TestFormatDeskContextEmpty(t *testing.T) {
	ctx := FormatDeskContext(nil, nil, nil, nil)
	if ctx != "No desk data currently available." {
		t.Fatalf("expected fallback text, got: %s", ctx)
	}
}

func TestFormatDeskContextMarksOnly(t *testing.T) {
	marks := []*domain.MarkSnapshot{{Asset: "ETH", Mid: 3500.25}}
	ctx := FormatDeskContext(marks, nil, nil, nil)
	if !strings.Contains(ctx, "ETH: 3500.25") {
		t.Fatal("expected ETH mark")
	}
	if strings.Contains(ctx, "Live Tickets") || strings.Contains(ctx, "Recent Closes") {
		t.Fatal("should not contain ticket sections when there are none")
	}
}
