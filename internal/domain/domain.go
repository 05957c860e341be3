package domain

import (
	"time"

	"github.com/fzheng/SigmaPilot/internal/event"
)

type TicketState string

const (
	TicketPending TicketState = "pending"
	TicketOpen    TicketState = "open"
	TicketClosed  TicketState = "closed"
	TicketExpired TicketState = "expired"
)

func (s TicketState) IsValid() bool {
	switch s {
	case TicketPending, TicketOpen, TicketClosed, TicketExpired:
		return true
	}
	return false
}

// Terminal states accept no further fills or transitions.
func (s TicketState) Terminal() bool {
	return s == TicketClosed || s == TicketExpired
}

// Ticket tracks one emitted signal through its fills. Entry fields are set
// when the opening fill arrives, exit fields and RealizedPnL exactly once
// when the closing fill arrives.
type Ticket struct {
	ID          string      `json:"id"`
	Address     string      `json:"address"`
	Asset       string      `json:"asset"`
	Side        event.Side  `json:"side"`
	Confidence  float64     `json:"confidence"`
	Reason      string      `json:"reason,omitempty"`
	State       TicketState `json:"state"`
	SignalTS    time.Time   `json:"signal_ts"`
	ExpiresAt   time.Time   `json:"expires_at"`
	EntryPrice  *float64    `json:"entry_price,omitempty"`
	EntryTS     *time.Time  `json:"entry_ts,omitempty"`
	ExitPrice   *float64    `json:"exit_price,omitempty"`
	ExitTS      *time.Time  `json:"exit_ts,omitempty"`
	RealizedPnL *float64    `json:"realized_pnl,omitempty"`
	Suspect     bool        `json:"suspect,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Signal reconstructs the originating signal event, used wherever the
// return calculation needs the side convention of a stored ticket.
func (t Ticket) Signal() event.SignalEvent {
	return event.SignalEvent{
		TicketID:   t.ID,
		Address:    t.Address,
		Asset:      t.Asset,
		Side:       t.Side,
		Confidence: t.Confidence,
		ScoreTS:    t.SignalTS,
		SignalTS:   t.SignalTS,
		ExpiresAt:  t.ExpiresAt,
		Reason:     t.Reason,
	}
}

type TicketFilter struct {
	State   TicketState
	Address string
	Asset   string
	Limit   int
}

// PnLSummary aggregates realized returns over an address's closed tickets.
type PnLSummary struct {
	Address     string  `json:"address"`
	Closed      int     `json:"closed"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	TotalReturn float64 `json:"total_return"`
	MeanReturn  float64 `json:"mean_return"`
	BestReturn  float64 `json:"best_return"`
	WorstReturn float64 `json:"worst_return"`
}

// FillRecord is the audit row kept for every ingested fill. Mark and
// Deviation are captured at ingest time; both are 0 when no mark was cached
// for the asset.
type FillRecord struct {
	TicketID  string
	Asset     string
	Price     float64
	Quantity  float64
	Mark      float64
	Deviation float64
	FillTS    time.Time
}

type ConversationMessage struct {
	Role      string
	Content   string
	CreatedAt time.Time
}

type SSHUser struct {
	ID          int64
	Username    string
	Fingerprint string
	CreatedAt   time.Time
	LastLoginAt *time.Time
}
