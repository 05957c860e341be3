// Package stream moves events over Redis Streams. Incoming scores and fills
// are consumed through a consumer group so entries survive a crash until
// acknowledged; emitted signals and closes are appended to capped outbound
// streams for downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fzheng/SigmaPilot/internal/domain"
	"github.com/fzheng/SigmaPilot/internal/event"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ScoreHandler interface {
	HandleScore(ctx context.Context, s event.ScoreEvent) (*event.SignalEvent, error)
}

type FillHandler interface {
	ApplyFill(ctx context.Context, fill event.FillEvent) error
}

// streamClient is the slice of redis.Client the bus needs.
type streamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type Config struct {
	ScoreStream  string
	FillStream   string
	SignalStream string
	CloseStream  string
	Group        string
	MaxLen       int64
	Block        time.Duration
}

func (c Config) withDefaults() Config {
	if c.ScoreStream == "" {
		c.ScoreStream = "sigma:scores"
	}
	if c.FillStream == "" {
		c.FillStream = "sigma:fills"
	}
	if c.SignalStream == "" {
		c.SignalStream = "sigma:signals"
	}
	if c.CloseStream == "" {
		c.CloseStream = "sigma:closes"
	}
	if c.Group == "" {
		c.Group = "sigma-decide"
	}
	if c.MaxLen <= 0 {
		c.MaxLen = 10000
	}
	if c.Block <= 0 {
		c.Block = 5 * time.Second
	}
	return c
}

type Bus struct {
	client   streamClient
	tracer   trace.Tracer
	scores   ScoreHandler
	fills    FillHandler
	cfg      Config
	consumer string
}

func NewBus(client streamClient, tracer trace.Tracer, scores ScoreHandler, fills FillHandler, cfg Config) *Bus {
	cfg = cfg.withDefaults()
	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = "sigma-decide-1"
	}
	return &Bus{
		client:   client,
		tracer:   tracer,
		scores:   scores,
		fills:    fills,
		cfg:      cfg,
		consumer: consumer,
	}
}

// Run consumes scores and fills until the context is canceled. Entries left
// pending by a previous run of this consumer are reprocessed first.
func (b *Bus) Run(ctx context.Context) error {
	if b.client == nil {
		log.Println("Stream bus is disabled, no redis client configured")
		<-ctx.Done()
		return ctx.Err()
	}
	if err := b.ensureGroups(ctx); err != nil {
		return err
	}
	log.Printf("Stream bus consuming %s and %s as %s/%s", b.cfg.ScoreStream, b.cfg.FillStream, b.cfg.Group, b.consumer)

	b.drainPending(ctx)
	for ctx.Err() == nil {
		streams, err := b.read(ctx, ">")
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Printf("Stream read error: %v", err)
			time.Sleep(time.Second)
			continue
		}
		b.dispatch(ctx, streams)
	}
	return ctx.Err()
}

func (b *Bus) ensureGroups(ctx context.Context) error {
	for _, stream := range []string{b.cfg.ScoreStream, b.cfg.FillStream} {
		err := b.client.XGroupCreateMkStream(ctx, stream, b.cfg.Group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return err
		}
	}
	return nil
}

// drainPending replays entries that were delivered to this consumer but
// never acknowledged.
func (b *Bus) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		streams, err := b.read(ctx, "0")
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				log.Printf("Pending replay read error: %v", err)
			}
			return
		}
		total := 0
		for _, s := range streams {
			total += len(s.Messages)
		}
		if total == 0 {
			return
		}
		log.Printf("Replaying %d pending stream entries", total)
		b.dispatch(ctx, streams)
	}
}

func (b *Bus) read(ctx context.Context, id string) ([]redis.XStream, error) {
	return b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.cfg.Group,
		Consumer: b.consumer,
		Streams:  []string{b.cfg.ScoreStream, b.cfg.FillStream, id, id},
		Count:    64,
		Block:    b.cfg.Block,
	}).Result()
}

func (b *Bus) dispatch(ctx context.Context, streams []redis.XStream) {
	for _, s := range streams {
		for _, msg := range s.Messages {
			switch s.Stream {
			case b.cfg.ScoreStream:
				b.handleScoreMessage(ctx, msg)
			case b.cfg.FillStream:
				b.handleFillMessage(ctx, msg)
			default:
				log.Printf("Entry %s from unexpected stream %s dropped", msg.ID, s.Stream)
				b.ack(ctx, s.Stream, msg.ID)
			}
		}
	}
}

// handleScoreMessage acks on success and on permanently malformed entries.
// A handler error leaves the entry pending for replay.
func (b *Bus) handleScoreMessage(ctx context.Context, msg redis.XMessage) {
	ctx, span := b.tracer.Start(ctx, "stream.handle-score",
		trace.WithAttributes(attribute.String("stream.entry_id", msg.ID)))
	defer span.End()

	score, err := decodeScore(msg.Values)
	if err != nil {
		log.Printf("Dropping malformed score entry %s: %v", msg.ID, err)
		b.ack(ctx, b.cfg.ScoreStream, msg.ID)
		return
	}
	if _, err := b.scores.HandleScore(ctx, score); err != nil {
		log.Printf("Score entry %s left pending: %v", msg.ID, err)
		return
	}
	b.ack(ctx, b.cfg.ScoreStream, msg.ID)
}

func (b *Bus) handleFillMessage(ctx context.Context, msg redis.XMessage) {
	ctx, span := b.tracer.Start(ctx, "stream.handle-fill",
		trace.WithAttributes(attribute.String("stream.entry_id", msg.ID)))
	defer span.End()

	fill, err := decodeFill(msg.Values)
	if err != nil {
		log.Printf("Dropping malformed fill entry %s: %v", msg.ID, err)
		b.ack(ctx, b.cfg.FillStream, msg.ID)
		return
	}
	if err := b.fills.ApplyFill(ctx, fill); err != nil {
		log.Printf("Fill entry %s left pending: %v", msg.ID, err)
		return
	}
	b.ack(ctx, b.cfg.FillStream, msg.ID)
}

func (b *Bus) ack(ctx context.Context, stream, id string) {
	if err := b.client.XAck(ctx, stream, b.cfg.Group, id).Err(); err != nil {
		log.Printf("Ack failed for %s on %s: %v", id, stream, err)
	}
}

// Publisher is the write half of the bus. It only appends, so producers can
// be constructed before the consumer loop's handlers exist; the ticket
// manager holds one while the bus consumes through the manager.
type Publisher struct {
	client streamClient
	tracer trace.Tracer
	cfg    Config
}

func NewPublisher(client streamClient, tracer trace.Tracer, cfg Config) *Publisher {
	return &Publisher{client: client, tracer: tracer, cfg: cfg.withDefaults()}
}

func (p *Publisher) PublishSignal(ctx context.Context, sig event.SignalEvent) error {
	return p.publish(ctx, p.cfg.SignalStream, sig)
}

func (p *Publisher) PublishClose(ctx context.Context, t domain.Ticket) error {
	return p.publish(ctx, p.cfg.CloseStream, t)
}

func (p *Publisher) publish(ctx context.Context, stream string, v any) error {
	if p.client == nil {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "stream.publish",
		trace.WithAttributes(attribute.String("stream.name", stream)))
	defer span.End()

	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.cfg.MaxLen,
		Approx: true,
		Values: map[string]any{"data": string(payload)},
	}).Err()
}

// decodeScore revalidates a wire entry through the event constructor so
// consumers only ever see trusted values.
func decodeScore(values map[string]any) (event.ScoreEvent, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return event.ScoreEvent{}, errors.New("entry has no data field")
	}
	var in event.ScoreEvent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return event.ScoreEvent{}, err
	}
	return event.NewScoreEvent(in.ScoreID, in.Source, in.Address, in.Asset, in.Score, in.Confidence, in.ScoreTS, in.Payload)
}

func decodeFill(values map[string]any) (event.FillEvent, error) {
	raw, ok := values["data"].(string)
	if !ok {
		return event.FillEvent{}, errors.New("entry has no data field")
	}
	var in event.FillEvent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return event.FillEvent{}, err
	}
	return event.NewFillEvent(in.TicketID, in.Asset, in.Price, in.Quantity, in.FillTS, in.Payload)
}
