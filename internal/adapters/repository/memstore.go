package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/lounge/internal/domain/model"
	"github.com/okian/lounge/pkg/metrics"
)

// shard owns a disjoint subset of players, keyed by name hash.
type shard struct {
	mu      sync.RWMutex
	players map[string]model.Player
}

// MemoryStore is a sharded in-process Store. Apply reads and writes a player
// under its shard lock, so concurrent updates to one player serialize.
type MemoryStore struct {
	shards                []*shard
	shardCount            int
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store with configuration options. The
// metrics updater runs until ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{players: make(map[string]model.Player)}
	}

	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) shardFor(name string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return s.shards[h.Sum32()%uint32(len(s.shards))] //nolint:gosec // shard count is small and positive
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, name string) (p model.Player, err error) {
	defer observe(BackendMemory, "get", time.Now(), &err)

	sh := s.shardFor(name)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	rec, ok := sh.players[name]
	if !ok {
		return model.Player{}, ErrNotFound
	}
	return rec.Clone(), nil
}

// List implements Store.List. Players come back sorted by name.
func (s *MemoryStore) List(ctx context.Context) (out []model.Player, err error) {
	defer observe(BackendMemory, "list", time.Now(), &err)

	out = make([]model.Player, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, rec := range sh.players {
			out = append(out, rec.Clone())
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Apply implements Store.Apply.
func (s *MemoryStore) Apply(ctx context.Context, name string, mmr int64) (ch model.Change, err error) {
	defer observe(BackendMemory, "apply", time.Now(), &err)

	sh := s.shardFor(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	rec, ok := sh.players[name]
	if !ok {
		return model.Change{}, ErrNotFound
	}
	next, ch, err := rec.Applied(mmr)
	if err != nil {
		return model.Change{}, err
	}
	sh.players[name] = next
	return ch, nil
}

// Create implements Store.Create.
func (s *MemoryStore) Create(ctx context.Context, p model.Player) (err error) {
	defer observe(BackendMemory, "create", time.Now(), &err)

	if p.Name == "" {
		return ErrInvalidName
	}
	sh := s.shardFor(p.Name)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.players[p.Name]; ok {
		return ErrAlreadyExists
	}
	sh.players[p.Name] = p.Clone()
	return nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	total := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		total += len(sh.players)
		sh.mu.RUnlock()
	}
	return total, nil
}

// Ping implements Store.Ping. The memory store is always reachable.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close stops the background metrics updater.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// startMetricsUpdater publishes the player count periodically.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				n, _ := s.Count(ctx)
				metrics.UpdateTotalPlayers(n)
			}
		}
	}()
}
