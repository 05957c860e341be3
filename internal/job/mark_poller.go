package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type MarkRefresher interface {
	RefreshMarks(ctx context.Context) error
}

// MarkPoller periodically pulls a full mid snapshot from the venue. It is
// the safety net under the streaming feed: marks stay usable even when the
// websocket is down.
type MarkPoller struct {
	tracer       trace.Tracer
	marks        MarkRefresher
	pollInterval time.Duration
}

func NewMarkPoller(tracer trace.Tracer, marks MarkRefresher, pollInterval time.Duration) *MarkPoller {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &MarkPoller{tracer: tracer, marks: marks, pollInterval: pollInterval}
}

func (j *MarkPoller) Start(ctx context.Context) {
	if j.marks == nil {
		log.Println("Mark poller disabled: no mark service")
		<-ctx.Done()
		return
	}
	log.Println("Mark poller starting...")
	j.runOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("Mark poller stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *MarkPoller) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "mark-poller-job.run-once")
	defer span.End()

	if err := j.marks.RefreshMarks(ctx); err != nil {
		log.Printf("Mark refresh error: %v", err)
	}
}
