package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type FeatureSource interface {
	RecentFeatures(ctx context.Context, limit int) ([][]float64, error)
}

type DetectorTrainer interface {
	Train(features [][]float64) bool
}

// AnomalyTrainJob refits the fill anomaly detector on the latest audited
// fills. Until the first successful fit the detector passes everything, so
// a sparse fills table just delays flagging rather than breaking it.
type AnomalyTrainJob struct {
	tracer        trace.Tracer
	source        FeatureSource
	trainer       DetectorTrainer
	trainInterval time.Duration
	sampleLimit   int
}

func NewAnomalyTrainJob(tracer trace.Tracer, source FeatureSource, trainer DetectorTrainer, trainInterval time.Duration) *AnomalyTrainJob {
	if trainInterval <= 0 {
		trainInterval = time.Hour
	}
	return &AnomalyTrainJob{
		tracer:        tracer,
		source:        source,
		trainer:       trainer,
		trainInterval: trainInterval,
		sampleLimit:   2000,
	}
}

func (j *AnomalyTrainJob) Start(ctx context.Context) {
	if j.source == nil || j.trainer == nil {
		log.Println("Anomaly training job disabled: no feature source or detector")
		<-ctx.Done()
		return
	}
	j.runOnce(ctx)
	ticker := time.NewTicker(j.trainInterval)
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

func (j *AnomalyTrainJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "anomaly-train-job.run-once")
	defer span.End()

	features, err := j.source.RecentFeatures(ctx, j.sampleLimit)
	if err != nil {
		log.Printf("Anomaly feature load error: %v", err)
		return
	}
	if !j.trainer.Train(features) {
		log.Printf("Anomaly training skipped: %d samples is not enough", len(features))
	}
}
