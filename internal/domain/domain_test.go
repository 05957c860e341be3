package domain

import (
	"testing"
	"time"

	"github.com/fzheng/SigmaPilot/internal/event"
)

func TestTicketStateValidity(t *testing.T) {
	for _, s := range []TicketState{TicketPending, TicketOpen, TicketClosed, TicketExpired} {
		if !s.IsValid() {
			t.Fatalf("state %s should be valid", s)
		}
	}
	if TicketState("cancelled").IsValid() {
		t.Fatal("unknown state accepted")
	}
}

func TestTicketStateTerminal(t *testing.T) {
	if TicketPending.Terminal() || TicketOpen.Terminal() {
		t.Fatal("live states must not be terminal")
	}
	if !TicketClosed.Terminal() || !TicketExpired.Terminal() {
		t.Fatal("closed and expired must be terminal")
	}
}

func TestTicketSignalRoundTrip(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tk := Ticket{
		ID:         "tkt-1",
		Address:    "0xabc",
		Asset:      "ETH",
		Side:       event.SideShort,
		Confidence: 0.64,
		Reason:     "consensus",
		State:      TicketOpen,
		SignalTS:   ts,
		ExpiresAt:  ts.Add(time.Hour),
	}
	sig := tk.Signal()
	if sig.TicketID != "tkt-1" || sig.Side != event.SideShort || sig.Confidence != 0.64 {
		t.Fatalf("signal does not reflect ticket: %+v", sig)
	}
	if !sig.ExpiresAt.Equal(tk.ExpiresAt) {
		t.Fatalf("expiry not carried: %+v", sig)
	}
}

func TestIsSupportedAsset(t *testing.T) {
	if !IsSupportedAsset("BTC") || !IsSupportedAsset("ETH") {
		t.Fatal("core assets should be supported")
	}
	if IsSupportedAsset("btc") || IsSupportedAsset("SHIB") {
		t.Fatal("unexpected asset accepted")
	}
}
