// Package pnl computes realized fractional returns for closed tickets. The
// calculation is pure and deterministic so every surface (close path, API,
// bot, dashboard) can call it for the same ticket and agree on the number.
package pnl

import "github.com/fzheng/SigmaPilot/internal/event"

// Calculate returns the realized fractional return for a trade opened at
// entryPrice and closed at exitPrice under the signal's side convention:
// long profits when price rises, short when it falls.
//
// A non-positive entry or exit price means the trade never had a usable
// price pair; the result is exactly 0 rather than an error, so a zero here
// is indistinguishable from a genuinely flat trade. Callers that need the
// distinction must check the prices before calling.
func Calculate(sig event.SignalEvent, entryPrice, exitPrice float64) float64 {
	if entryPrice <= 0 || exitPrice <= 0 {
		return 0
	}
	delta := (exitPrice - entryPrice) / entryPrice
	if sig.Side == event.SideShort {
		return -delta
	}
	return delta
}
