package repository

import (
	"context"

	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// FillRepository is the append-only audit of ingested fills. Backfills
// arrive in bursts, so writes go through a batch; the anomaly detector
// trains on the recorded feature columns.
type FillRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewFillRepository(pool PgxPool, tracer trace.Tracer) *FillRepository {
	return &FillRepository{pool: pool, tracer: tracer}
}

func (r *FillRepository) InsertBatch(ctx context.Context, fills []domain.FillRecord) error {
	if len(fills) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "fill-repo.insert-batch")
	defer span.End()

	batch := &pgx.Batch{}
	for _, f := range fills {
		batch.Queue(
			`INSERT INTO fills (ticket_id, asset, price, quantity, mark, deviation, fill_ts)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.TicketID, f.Asset, f.Price, f.Quantity, f.Mark, f.Deviation, f.FillTS.UTC(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range fills {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentFeatures returns [deviation, quantity] vectors from the newest
// audit rows that captured a mark, newest first.
func (r *FillRepository) RecentFeatures(ctx context.Context, limit int) ([][]float64, error) {
	_, span := r.tracer.Start(ctx, "fill-repo.recent-features")
	defer span.End()

	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
SELECT deviation, quantity
FROM fills
WHERE mark > 0
ORDER BY fill_ts DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features [][]float64
	for rows.Next() {
		var deviation, quantity float64
		if err := rows.Scan(&deviation, &quantity); err != nil {
			return nil, err
		}
		features = append(features, []float64{deviation, quantity})
	}
	return features, rows.Err()
}
