package storage

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestStorage(t *testing.T, hotCapacity int) *TieredStorage {
	t.Helper()
	dir := t.TempDir()
	ts, err := New(Config{
		HotCapacity: hotCapacity,
		WarmDir:     filepath.Join(dir, "warm"),
		ColdDir:     filepath.Join(dir, "cold"),
	}, prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ts
}

func TestPutThenGetHitsHot(t *testing.T) {
	ts := newTestStorage(t, 10)
	if err := ts.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok := ts.Get([]byte("k"))
	if !ok || string(v) != "v" {
		t.Fatalf("Get = (%q, %v), want (v, true)", v, ok)
	}
	if ts.Locate([]byte("k")) != TierHot {
		t.Fatalf("expected key to be located in Hot")
	}
}

func TestEvictionDemotesToWarm(t *testing.T) {
	ts := newTestStorage(t, 1)
	if err := ts.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ts.Put([]byte("b"), []byte("2")); err != nil { // evicts "a" from a 1-entry Hot cache
		t.Fatalf("Put: %v", err)
	}

	if ts.Locate([]byte("a")) != TierWarm {
		t.Fatalf("expected evicted key to be demoted into Warm, got %v", ts.Locate([]byte("a")))
	}
	v, ok := ts.Get([]byte("a"))
	if !ok || string(v) != "1" {
		t.Fatalf("Get after eviction = (%q, %v), want (1, true)", v, ok)
	}
	// The Get should have promoted "a" back into Hot.
	if ts.Locate([]byte("a")) != TierHot {
		t.Fatalf("expected a Warm hit to promote the key back into Hot")
	}
}

// ArchiveKey only ever touches Warm/Cold, so a key still resident in Hot is
// archived from Warm underneath it without being evicted from Hot.
func TestArchiveKeyMovesWarmToColdWithoutTouchingHot(t *testing.T) {
	ts := newTestStorage(t, 1)
	if err := ts.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ts.Put([]byte("b"), []byte("2")); err != nil { // evicts "a" into Warm
		t.Fatalf("Put: %v", err)
	}
	if ts.Locate([]byte("a")) != TierWarm {
		t.Fatalf("expected \"a\" to be in Warm before archiving, got %v", ts.Locate([]byte("a")))
	}
	if err := ts.ArchiveKey([]byte("a")); err != nil {
		t.Fatalf("ArchiveKey: %v", err)
	}
	if ts.Locate([]byte("a")) != TierCold {
		t.Fatalf("expected archived key to be in Cold, got %v", ts.Locate([]byte("a")))
	}

	if err := ts.ArchiveKey([]byte("b")); err != nil {
		t.Fatalf("ArchiveKey: %v", err)
	}
	if ts.Locate([]byte("b")) != TierHot {
		t.Fatalf("ArchiveKey must not evict a key still resident in Hot, got %v", ts.Locate([]byte("b")))
	}
}

func TestArchiveKeysBatchEvictsHotFirst(t *testing.T) {
	ts := newTestStorage(t, 10)
	if err := ts.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ts.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ts.ArchiveKeys([][]byte{[]byte("a"), []byte("b")}); err != nil {
		t.Fatalf("ArchiveKeys: %v", err)
	}
	if ts.Locate([]byte("a")) != TierCold || ts.Locate([]byte("b")) != TierCold {
		t.Fatalf("expected both keys evicted from Hot and archived to Cold")
	}
}

func TestRemoveDeletesFromEveryTier(t *testing.T) {
	ts := newTestStorage(t, 10)
	if err := ts.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := ts.ArchiveKey([]byte("k")); err != nil {
		t.Fatalf("ArchiveKey: %v", err)
	}
	if err := ts.Remove([]byte("k")); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if ts.Locate([]byte("k")) != TierNone {
		t.Fatalf("expected key gone from every tier after Remove")
	}
	if _, ok := ts.Get([]byte("k")); ok {
		t.Fatalf("expected Get to miss after Remove")
	}
}

func TestGetMissReportsFalse(t *testing.T) {
	ts := newTestStorage(t, 10)
	if _, ok := ts.Get([]byte("absent")); ok {
		t.Fatalf("expected miss for a never-written key")
	}
}

func TestLocateNoneForUnknownKey(t *testing.T) {
	ts := newTestStorage(t, 10)
	if tier := ts.Locate([]byte("absent")); tier != TierNone {
		t.Fatalf("Locate = %v, want TierNone", tier)
	}
}
