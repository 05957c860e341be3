// Package event defines the immutable event types exchanged between the
// scoring upstream, the decision core, and the execution downstream. All
// validation happens at construction; a value obtained from a constructor
// is trusted everywhere else.
package event

import (
	"fmt"
	"time"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

func (s Side) IsValid() bool {
	return s == SideLong || s == SideShort
}

// ValidationError reports a constructor argument that violates the event
// contract. Field names the offending field in its wire spelling.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// SignalEvent is an actionable trading decision for one address/asset pair.
type SignalEvent struct {
	TicketID   string         `json:"ticket_id"`
	Address    string         `json:"address"`
	Asset      string         `json:"asset"`
	Side       Side           `json:"side"`
	Confidence float64        `json:"confidence"`
	ScoreTS    time.Time      `json:"score_ts"`
	SignalTS   time.Time      `json:"signal_ts"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Reason     string         `json:"reason"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewSignalEvent validates and builds a SignalEvent. It fails with a
// *ValidationError when confidence is outside [0,1], signal_ts precedes
// score_ts, expires_at is not after signal_ts, or side is unknown.
func NewSignalEvent(ticketID, address, asset string, side Side, confidence float64, scoreTS, signalTS, expiresAt time.Time, reason string, payload map[string]any) (SignalEvent, error) {
	if confidence < 0 || confidence > 1 {
		return SignalEvent{}, &ValidationError{Field: "confidence", Msg: fmt.Sprintf("must be within [0,1], got %v", confidence)}
	}
	if signalTS.Before(scoreTS) {
		return SignalEvent{}, &ValidationError{Field: "signal_ts", Msg: "must not precede score_ts"}
	}
	if !expiresAt.After(signalTS) {
		return SignalEvent{}, &ValidationError{Field: "expires_at", Msg: "must be after signal_ts"}
	}
	if !side.IsValid() {
		return SignalEvent{}, &ValidationError{Field: "side", Msg: fmt.Sprintf("must be %q or %q, got %q", SideLong, SideShort, side)}
	}
	return SignalEvent{
		TicketID:   ticketID,
		Address:    address,
		Asset:      asset,
		Side:       side,
		Confidence: confidence,
		ScoreTS:    scoreTS.UTC(),
		SignalTS:   signalTS.UTC(),
		ExpiresAt:  expiresAt.UTC(),
		Reason:     reason,
		Payload:    copyPayload(payload),
	}, nil
}

// ScoreEvent is one upstream scorer's read on an address/asset pair. Score
// carries the directional lean in [-1,1], Confidence the scorer's own
// certainty in [0,1].
type ScoreEvent struct {
	ScoreID    string         `json:"score_id"`
	Source     string         `json:"source"`
	Address    string         `json:"address"`
	Asset      string         `json:"asset"`
	Score      float64        `json:"score"`
	Confidence float64        `json:"confidence"`
	ScoreTS    time.Time      `json:"score_ts"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func NewScoreEvent(scoreID, source, address, asset string, score, confidence float64, scoreTS time.Time, payload map[string]any) (ScoreEvent, error) {
	if scoreID == "" {
		return ScoreEvent{}, &ValidationError{Field: "score_id", Msg: "must not be empty"}
	}
	if source == "" {
		return ScoreEvent{}, &ValidationError{Field: "source", Msg: "must not be empty"}
	}
	if address == "" {
		return ScoreEvent{}, &ValidationError{Field: "address", Msg: "must not be empty"}
	}
	if asset == "" {
		return ScoreEvent{}, &ValidationError{Field: "asset", Msg: "must not be empty"}
	}
	if score < -1 || score > 1 {
		return ScoreEvent{}, &ValidationError{Field: "score", Msg: fmt.Sprintf("must be within [-1,1], got %v", score)}
	}
	if confidence < 0 || confidence > 1 {
		return ScoreEvent{}, &ValidationError{Field: "confidence", Msg: fmt.Sprintf("must be within [0,1], got %v", confidence)}
	}
	if scoreTS.IsZero() {
		return ScoreEvent{}, &ValidationError{Field: "score_ts", Msg: "must be set"}
	}
	return ScoreEvent{
		ScoreID:    scoreID,
		Source:     source,
		Address:    address,
		Asset:      asset,
		Score:      score,
		Confidence: confidence,
		ScoreTS:    scoreTS.UTC(),
		Payload:    copyPayload(payload),
	}, nil
}

// FillEvent reports an executed order attributed to a ticket. Prices are not
// range-checked here: the realized return calculation treats non-positive
// prices as unusable and yields 0, so malformed venue data degrades instead
// of failing construction.
type FillEvent struct {
	TicketID string         `json:"ticket_id"`
	Asset    string         `json:"asset"`
	Price    float64        `json:"price"`
	Quantity float64        `json:"quantity"`
	FillTS   time.Time      `json:"fill_ts"`
	Payload  map[string]any `json:"payload,omitempty"`
}

func NewFillEvent(ticketID, asset string, price, quantity float64, fillTS time.Time, payload map[string]any) (FillEvent, error) {
	if ticketID == "" {
		return FillEvent{}, &ValidationError{Field: "ticket_id", Msg: "must not be empty"}
	}
	if fillTS.IsZero() {
		return FillEvent{}, &ValidationError{Field: "fill_ts", Msg: "must be set"}
	}
	return FillEvent{
		TicketID: ticketID,
		Asset:    asset,
		Price:    price,
		Quantity: quantity,
		FillTS:   fillTS.UTC(),
		Payload:  copyPayload(payload),
	}, nil
}

func copyPayload(p map[string]any) map[string]any {
	if len(p) == 0 {
		return nil
	}
	cp := make(map[string]any, len(p))
	for k, v := range p {
		cp[k] = v
	}
	return cp
}
