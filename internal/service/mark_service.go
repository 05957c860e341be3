package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/fzheng/SigmaPilot/internal/cache"
	"github.com/fzheng/SigmaPilot/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const markCacheTTL = 90 * time.Second

type MarkProvider interface {
	FetchMids(ctx context.Context) (map[string]*domain.MarkSnapshot, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// MarkService keeps the latest mark per asset. Marks arrive from the poller
// and the websocket feed; reads are served from process memory with Redis as
// a warm fallback after restarts. Reads never call the venue, so a lookup on
// the fill path stays cheap even when the venue is down.
type MarkService struct {
	tracer   trace.Tracer
	provider MarkProvider
	redis    RedisClient

	mu    sync.RWMutex
	local map[string]*domain.MarkSnapshot
}

func NewMarkService(tracer trace.Tracer, provider MarkProvider, redisClient RedisClient) *MarkService {
	return &MarkService{
		tracer:   tracer,
		provider: provider,
		redis:    redisClient,
		local:    make(map[string]*domain.MarkSnapshot),
	}
}

// RefreshMarks pulls a full mid snapshot from the venue and stores it.
func (s *MarkService) RefreshMarks(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "mark-service.refresh-marks")
	defer span.End()

	mids, err := s.provider.FetchMids(ctx)
	if err != nil {
		return err
	}
	for _, snap := range mids {
		s.store(ctx, snap)
	}
	log.Printf("Refreshed marks for %d assets", len(mids))
	return nil
}

// ApplyUpdate ingests one mid from the streaming feed.
func (s *MarkService) ApplyUpdate(ctx context.Context, asset string, mid float64, ts time.Time) {
	if !domain.IsSupportedAsset(asset) || mid <= 0 {
		return
	}
	s.store(ctx, &domain.MarkSnapshot{Asset: asset, Mid: mid, UpdatedUnix: ts.Unix()})
}

// GetMark returns the freshest known mark for an asset. Misses are errors;
// callers decide whether a missing mark is fatal.
func (s *MarkService) GetMark(ctx context.Context, asset string) (*domain.MarkSnapshot, error) {
	_, span := s.tracer.Start(ctx, "mark-service.get-mark")
	defer span.End()

	if !domain.IsSupportedAsset(asset) {
		return nil, fmt.Errorf("unsupported asset: %s", asset)
	}
	snap := s.lookup(ctx, asset)
	if snap == nil {
		return nil, fmt.Errorf("no mark for %s", asset)
	}
	return snap, nil
}

// ListMarks returns every known mark sorted by asset. Assets with no mark
// yet are simply absent.
func (s *MarkService) ListMarks(ctx context.Context) ([]*domain.MarkSnapshot, error) {
	_, span := s.tracer.Start(ctx, "mark-service.list-marks")
	defer span.End()

	var marks []*domain.MarkSnapshot
	for _, asset := range domain.SupportedAssets {
		if snap := s.lookup(ctx, asset); snap != nil {
			marks = append(marks, snap)
		}
	}
	sort.Slice(marks, func(i, j int) bool { return marks[i].Asset < marks[j].Asset })
	return marks, nil
}

func (s *MarkService) lookup(ctx context.Context, asset string) *domain.MarkSnapshot {
	s.mu.RLock()
	snap := s.local[asset]
	s.mu.RUnlock()
	if snap != nil && !stale(snap) {
		return snap
	}

	// Processes that never receive feed updates (the ssh and mcp frontends)
	// re-read Redis once the local copy outlives the cache TTL, instead of
	// serving a frozen snapshot forever.
	if s.redis != nil {
		cached, err := s.getMarkCache(ctx, asset)
		if err != nil {
			log.Printf("redis mark read error: %v", err)
		}
		if cached != nil && (snap == nil || cached.UpdatedUnix > snap.UpdatedUnix) {
			s.setLocal(cached)
			return cached
		}
	}
	return snap
}

func stale(snap *domain.MarkSnapshot) bool {
	return time.Now().Unix()-snap.UpdatedUnix > int64(markCacheTTL/time.Second)
}

func (s *MarkService) store(ctx context.Context, snap *domain.MarkSnapshot) {
	if !s.setLocal(snap) {
		return
	}
	if s.redis != nil {
		if err := s.setMarkCache(ctx, snap); err != nil {
			log.Printf("redis mark write error for %s: %v", snap.Asset, err)
		}
	}
}

// setLocal keeps the freshest snapshot per asset. The poller's snapshot can
// be seconds old by the time it lands, so it must not clobber a newer feed
// update. Returns false when the update was stale.
func (s *MarkService) setLocal(snap *domain.MarkSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur := s.local[snap.Asset]; cur != nil && cur.UpdatedUnix > snap.UpdatedUnix {
		return false
	}
	s.local[snap.Asset] = snap
	return true
}

func (s *MarkService) setMarkCache(ctx context.Context, snap *domain.MarkSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, cache.MarkKey(snap.Asset), data, markCacheTTL).Err()
}

func (s *MarkService) getMarkCache(ctx context.Context, asset string) (*domain.MarkSnapshot, error) {
	data, err := s.redis.Get(ctx, cache.MarkKey(asset)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.MarkSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
