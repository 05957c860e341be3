package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fzheng/SigmaPilot/internal/event"

	"go.opentelemetry.io/otel/trace"
)

// ScoreRepository keeps an append-only audit of every score the decision
// engine ingested, so emitted signals can be traced back to their inputs.
type ScoreRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewScoreRepository(pool PgxPool, tracer trace.Tracer) *ScoreRepository {
	return &ScoreRepository{pool: pool, tracer: tracer}
}

func (r *ScoreRepository) Insert(ctx context.Context, s event.ScoreEvent) error {
	_, span := r.tracer.Start(ctx, "score-repo.insert")
	defer span.End()

	payload := "{}"
	if len(s.Payload) > 0 {
		if b, err := json.Marshal(s.Payload); err == nil {
			payload = string(b)
		}
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO scores (score_id, source, address, asset, score, confidence, score_ts, payload_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (score_id) DO NOTHING`,
		s.ScoreID, s.Source, s.Address, s.Asset, s.Score, s.Confidence, s.ScoreTS.UTC(), payload)
	return err
}

func (r *ScoreRepository) Recent(ctx context.Context, address, asset string, since time.Time, limit int) ([]event.ScoreEvent, error) {
	_, span := r.tracer.Start(ctx, "score-repo.recent")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
SELECT score_id, source, address, asset, score, confidence, score_ts, payload_json
FROM scores
WHERE address = $1 AND asset = $2 AND score_ts >= $3
ORDER BY score_ts DESC
LIMIT $4`,
		address, asset, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []event.ScoreEvent
	for rows.Next() {
		var s event.ScoreEvent
		var payload string
		if err := rows.Scan(&s.ScoreID, &s.Source, &s.Address, &s.Asset, &s.Score, &s.Confidence, &s.ScoreTS, &payload); err != nil {
			return nil, err
		}
		s.ScoreTS = s.ScoreTS.UTC()
		if payload != "" && payload != "{}" {
			var m map[string]any
			if err := json.Unmarshal([]byte(payload), &m); err == nil {
				s.Payload = m
			}
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

// PruneBefore drops audit rows older than the cutoff. Returns rows removed.
func (r *ScoreRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "score-repo.prune")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM scores WHERE score_ts < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
