// Package decision turns streams of per-source scores into consensus
// signals. One engine serves all tracked address/asset pairs; each pair
// keeps a short window holding the latest score per source.
package decision

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TicketManager is the slice of the ticket lifecycle the engine needs: a
// fast liveness check for dedupe and the open operation for emissions.
type TicketManager interface {
	Live(address, asset string) bool
	OpenTicket(ctx context.Context, sig event.SignalEvent) error
}

type ScoreAudit interface {
	Insert(ctx context.Context, s event.ScoreEvent) error
}

type Config struct {
	MinSources     int
	ScoreWindow    time.Duration
	LongThreshold  float64
	ShortThreshold float64
	SignalTTL      time.Duration
}

type Engine struct {
	tracer  trace.Tracer
	tickets TicketManager
	audit   ScoreAudit
	cfg     Config
	now     func() time.Time

	mu      sync.Mutex
	windows map[string]map[string]event.ScoreEvent
}

func NewEngine(tracer trace.Tracer, tickets TicketManager, audit ScoreAudit, cfg Config) *Engine {
	if cfg.MinSources <= 0 {
		cfg.MinSources = 2
	}
	if cfg.ScoreWindow <= 0 {
		cfg.ScoreWindow = 5 * time.Minute
	}
	if cfg.LongThreshold <= 0 {
		cfg.LongThreshold = 0.35
	}
	if cfg.ShortThreshold >= 0 {
		cfg.ShortThreshold = -0.35
	}
	if cfg.SignalTTL <= 0 {
		cfg.SignalTTL = 15 * time.Minute
	}
	return &Engine{
		tracer:  tracer,
		tickets: tickets,
		audit:   audit,
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]map[string]event.ScoreEvent),
	}
}

// HandleScore ingests one score and, when the pair's window reaches
// consensus, emits a signal by opening a ticket. Returns the emitted signal
// or nil when the score only updated the window.
func (e *Engine) HandleScore(ctx context.Context, s event.ScoreEvent) (*event.SignalEvent, error) {
	ctx, span := e.tracer.Start(ctx, "decision.handle-score",
		trace.WithAttributes(
			attribute.String("score.source", s.Source),
			attribute.String("score.asset", s.Asset),
		))
	defer span.End()

	if !domain.IsSupportedAsset(s.Asset) {
		log.Printf("decision: dropping score %s for unsupported asset %s", s.ScoreID, s.Asset)
		return nil, nil
	}

	if e.audit != nil {
		if err := e.audit.Insert(ctx, s); err != nil {
			log.Printf("decision: score audit failed for %s: %v", s.ScoreID, err)
		}
	}

	key := s.Address + "|" + s.Asset
	now := e.now()

	e.mu.Lock()
	window := e.windows[key]
	if window == nil {
		window = make(map[string]event.ScoreEvent)
		e.windows[key] = window
	}
	cutoff := now.Add(-e.cfg.ScoreWindow)
	for src, old := range window {
		if old.ScoreTS.Before(cutoff) {
			delete(window, src)
		}
	}
	if prev, ok := window[s.Source]; !ok || !prev.ScoreTS.After(s.ScoreTS) {
		window[s.Source] = s
	}
	side, confidence, scoreTS, details, ok := e.evaluate(window)
	e.mu.Unlock()

	if !ok {
		return nil, nil
	}
	if e.tickets.Live(s.Address, s.Asset) {
		return nil, nil
	}

	signalTS := now
	if signalTS.Before(scoreTS) {
		signalTS = scoreTS
	}
	sig, err := event.NewSignalEvent(
		uuid.NewString(), s.Address, s.Asset, side, confidence,
		scoreTS, signalTS, signalTS.Add(e.cfg.SignalTTL),
		"consensus", details,
	)
	if err != nil {
		return nil, err
	}

	if err := e.tickets.OpenTicket(ctx, sig); err != nil {
		return nil, err
	}

	e.mu.Lock()
	delete(e.windows, key)
	e.mu.Unlock()

	span.SetAttributes(attribute.String("signal.ticket_id", sig.TicketID), attribute.String("signal.side", string(side)))
	return &sig, nil
}

// evaluate reduces a window to a decision. Caller holds the mutex.
func (e *Engine) evaluate(window map[string]event.ScoreEvent) (event.Side, float64, time.Time, map[string]any, bool) {
	if len(window) < e.cfg.MinSources {
		return "", 0, time.Time{}, nil, false
	}

	totalConf := 0.0
	weighted := 0.0
	var newest time.Time
	for _, s := range window {
		totalConf += s.Confidence
		weighted += s.Confidence * clamp(s.Score, -1, 1)
		if s.ScoreTS.After(newest) {
			newest = s.ScoreTS
		}
	}
	if totalConf <= 0 {
		return "", 0, time.Time{}, nil, false
	}
	weighted = clamp(weighted/totalConf, -1, 1)
	meanConf := totalConf / float64(len(window))

	var side event.Side
	switch {
	case weighted >= e.cfg.LongThreshold:
		side = event.SideLong
	case weighted <= e.cfg.ShortThreshold:
		side = event.SideShort
	default:
		return "", 0, time.Time{}, nil, false
	}

	agree := 0
	sources := make(map[string]any, len(window))
	for src, s := range window {
		sources[src] = s.Score
		if (side == event.SideLong && s.Score > 0) || (side == event.SideShort && s.Score < 0) {
			agree++
		}
	}
	agreement := float64(agree) / float64(len(window))
	confidence := clamp(meanConf*agreement, 0, 1)

	details := map[string]any{
		"weighted_score": weighted,
		"agreement":      agreement,
		"sources":        sources,
	}
	return side, confidence, newest, details, true
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
