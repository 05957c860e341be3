package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type TicketExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type ScorePruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExpiryJob sweeps pending tickets past their expiry on a short cadence and
// prunes the score audit trail on an hourly one.
type ExpiryJob struct {
	tracer         trace.Tracer
	tickets        TicketExpirer
	scores         ScorePruner
	sweepInterval  time.Duration
	scoreRetention time.Duration
	lastPrune      time.Time
}

func NewExpiryJob(tracer trace.Tracer, tickets TicketExpirer, scores ScorePruner, sweepInterval time.Duration) *ExpiryJob {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &ExpiryJob{
		tracer:         tracer,
		tickets:        tickets,
		scores:         scores,
		sweepInterval:  sweepInterval,
		scoreRetention: 7 * 24 * time.Hour,
	}
}

func (j *ExpiryJob) Start(ctx context.Context) {
	if j.tickets == nil {
		log.Println("Expiry job disabled: no ticket manager")
		<-ctx.Done()
		return
	}
	j.runOnce(ctx)
	ticker := time.NewTicker(j.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *ExpiryJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "expiry-job.run-once")
	defer span.End()

	expired, err := j.tickets.ExpireDue(ctx, time.Now())
	if err != nil {
		log.Printf("Ticket expiry sweep error: %v", err)
	} else if expired > 0 {
		log.Printf("Expired %d stale tickets", expired)
	}

	if j.scores == nil || time.Since(j.lastPrune) < time.Hour {
		return
	}
	j.lastPrune = time.Now()
	pruned, err := j.scores.PruneBefore(ctx, time.Now().Add(-j.scoreRetention))
	if err != nil {
		log.Printf("Score prune error: %v", err)
		return
	}
	if pruned > 0 {
		log.Printf("Pruned %d old scores", pruned)
	}
}
