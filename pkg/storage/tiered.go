package storage

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier names the storage tier a key currently resides in.
type Tier int

const (
	TierNone Tier = iota
	TierHot
	TierWarm
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return "none"
	}
}

// Config configures TieredStorage.
type Config struct {
	HotCapacity int
	WarmDir     string
	ColdDir     string
}

// TieredStorage composes the Hot/Warm/Cold tiers (§4.5). Put writes through
// to Warm for durability before inserting into Hot, so a key is never only a
// Hot miss away from being lost. Get checks Hot, then Warm, then Cold,
// promoting a Warm or Cold hit back into Hot on the way out.
type TieredStorage struct {
	mu   sync.Mutex
	hot  *HotCache
	warm *FileTier
	cold *FileTier

	hits      *prometheus.CounterVec
	misses    prometheus.Counter
	promotes  *prometheus.CounterVec
	evictions prometheus.Counter
}

// New builds a TieredStorage. reg may be nil, in which case the default
// Prometheus registry is used.
func New(cfg Config, reg prometheus.Registerer) (*TieredStorage, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	warm, err := NewFileTier(cfg.WarmDir)
	if err != nil {
		return nil, err
	}
	cold, err := NewFileTier(cfg.ColdDir)
	if err != nil {
		return nil, err
	}
	ts := &TieredStorage{warm: warm, cold: cold}

	ts.hits = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "ordinal_storage_hits_total",
		Help: "Storage reads served per tier.",
	}, []string{"tier"})
	ts.misses = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "ordinal_storage_misses_total",
		Help: "Storage reads that found the key in no tier.",
	})
	ts.promotes = promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "ordinal_storage_promotions_total",
		Help: "Entries promoted into Hot after a Warm/Cold hit.",
	}, []string{"from"})
	ts.evictions = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Name: "ordinal_storage_evictions_total",
		Help: "Entries evicted from Hot and demoted into Warm.",
	})

	hot, err := NewHotCache(cfg.HotCapacity, ts.onEvict)
	if err != nil {
		return nil, err
	}
	ts.hot = hot
	return ts, nil
}

func (ts *TieredStorage) onEvict(key string, value []byte) {
	ts.evictions.Inc()
	// Best-effort demotion: a failed write leaves the entry only in Hot,
	// which already evicted it, so it is lost. This mirrors an in-memory
	// cache's ordinary eviction loss. The error is discarded without being
	// logged, since HotCache's eviction callback has no error return.
	_ = ts.warm.Put([]byte(key), value)
}

// Get looks up key across Hot, then Warm, then Cold, promoting on a Warm or
// Cold hit.
func (ts *TieredStorage) Get(key []byte) ([]byte, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	k := string(key)
	if v, ok := ts.hot.Get(k); ok {
		ts.hits.WithLabelValues("hot").Inc()
		return v, true
	}
	if v, err := ts.warm.Get(key); err == nil {
		ts.hits.WithLabelValues("warm").Inc()
		ts.promotes.WithLabelValues("warm").Inc()
		ts.hot.Put(k, v)
		return v, true
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if v, err := ts.cold.Get(key); err == nil {
		ts.hits.WithLabelValues("cold").Inc()
		ts.promotes.WithLabelValues("cold").Inc()
		ts.hot.Put(k, v)
		return v, true
	}
	ts.misses.Inc()
	return nil, false
}

// Put writes value through to Warm for durability, then inserts it into Hot.
func (ts *TieredStorage) Put(key, value []byte) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if err := ts.warm.Put(key, value); err != nil {
		return err
	}
	ts.hot.Put(string(key), value)
	return nil
}

// Remove deletes key from every tier.
func (ts *TieredStorage) Remove(key []byte) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.hot.Remove(string(key))
	if err := ts.warm.Remove(key); err != nil {
		return err
	}
	return ts.cold.Remove(key)
}

// ArchiveKey moves key from Warm into Cold: Warm read, Cold write, Warm
// delete. It does not touch Hot — a key still cached in Hot is left there,
// stale against the now Cold-only copy, which is why ArchiveKeys (for
// batches going genuinely cold) evicts Hot first. It is a no-op, not an
// error, if the key is not present in Warm.
func (ts *TieredStorage) ArchiveKey(key []byte) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.archiveWarmToColdLocked(key)
}

func (ts *TieredStorage) archiveWarmToColdLocked(key []byte) error {
	value, err := ts.warm.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}
	if err := ts.cold.Put(key, value); err != nil {
		return err
	}
	return ts.warm.Remove(key)
}

// ArchiveKeys archives every key in keys: each is first evicted from Hot if
// present, then archived from Warm to Cold exactly as ArchiveKey does. It
// stops and returns the first error encountered.
func (ts *TieredStorage) ArchiveKeys(keys [][]byte) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	for _, key := range keys {
		ts.hot.Remove(string(key))
		if err := ts.archiveWarmToColdLocked(key); err != nil {
			return err
		}
	}
	return nil
}

// Locate reports which tier currently holds key, without promoting it.
func (ts *TieredStorage) Locate(key []byte) Tier {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.hot.Contains(string(key)) {
		return TierHot
	}
	if ts.warm.Contains(key) {
		return TierWarm
	}
	if ts.cold.Contains(key) {
		return TierCold
	}
	return TierNone
}
