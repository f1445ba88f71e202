package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const gateShards = 32

// GateConfig configures a Gate. Zero values fall back to 10 tokens refilled
// at 10 tokens per minute.
type GateConfig struct {
	MaxTokens  int
	RefillRate int
	Interval   time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

type gateShard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Gate is a per-identifier token bucket used for admission control.
// Refill is computed lazily from elapsed time on each call; there is no
// background timer. It is safe for concurrent use.
type Gate struct {
	maxTokens  int
	refillRate int
	interval   time.Duration
	now        func() time.Time
	shards     [gateShards]gateShard
}

// NewGate creates a Gate from cfg.
func NewGate(cfg GateConfig) *Gate {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 10
	}
	if cfg.RefillRate <= 0 {
		cfg.RefillRate = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	g := &Gate{
		maxTokens:  cfg.MaxTokens,
		refillRate: cfg.RefillRate,
		interval:   cfg.Interval,
		now:        cfg.Now,
	}
	for i := range g.shards {
		g.shards[i].buckets = make(map[string]*bucket)
	}
	return g
}

func (g *Gate) shard(id string) *gateShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &g.shards[h.Sum32()%gateShards]
}

// tokensToAdd returns floor(elapsed / interval * refillRate).
func (g *Gate) tokensToAdd(b *bucket, now time.Time) int {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return 0
	}
	return int(int64(elapsed) * int64(g.refillRate) / int64(g.interval))
}

// Allow consumes one token for id and reports whether the call is admitted.
func (g *Gate) Allow(id string) bool {
	s := g.shard(id)
	now := g.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[id]
	if !ok {
		b = &bucket{tokens: g.maxTokens, lastRefill: now}
		s.buckets[id] = b
	}

	if add := g.tokensToAdd(b, now); add > 0 {
		b.tokens = min(g.maxTokens, b.tokens+add)
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// RemainingTokens returns the number of tokens id could spend right now
// without modifying the bucket.
func (g *Gate) RemainingTokens(id string) int {
	s := g.shard(id)
	now := g.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[id]
	if !ok {
		return g.maxTokens
	}
	return min(g.maxTokens, b.tokens+g.tokensToAdd(b, now))
}

// ResetTime returns the earliest time at which id will have one more token.
// It returns the zero time when id is unknown or still has tokens.
func (g *Gate) ResetTime(id string) time.Time {
	s := g.shard(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[id]
	if !ok || b.tokens > 0 {
		return time.Time{}
	}
	return b.lastRefill.Add(g.interval / time.Duration(g.refillRate))
}

// Sweep drops buckets that have refilled to capacity. A dropped bucket is
// indistinguishable from a fresh one, so this only bounds memory.
// It returns the number of buckets removed.
func (g *Gate) Sweep() int {
	now := g.now()
	removed := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		for id, b := range s.buckets {
			if b.tokens+g.tokensToAdd(b, now) >= g.maxTokens {
				delete(s.buckets, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked identifiers.
func (g *Gate) Len() int {
	n := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}
