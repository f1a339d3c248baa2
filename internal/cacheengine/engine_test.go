package cacheengine

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestEngine(capacity int) *Engine {
	// Long sweep interval so tests control expiry timing themselves unless
	// they specifically want to exercise the sweeper.
	return New(capacity, time.Hour)
}

func TestEnginePutGet(t *testing.T) {
	t.Run("put then get", func(t *testing.T) {
		e := newTestEngine(10)
		defer e.Close()

		if err := e.Put("k1", "v1", 0); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		v, hit := e.Get("k1")
		if !hit {
			t.Fatal("expected hit")
		}
		if v != "v1" {
			t.Errorf("expected v1, got %s", v)
		}
	})

	t.Run("miss on absent key", func(t *testing.T) {
		e := newTestEngine(10)
		defer e.Close()

		_, hit := e.Get("missing")
		if hit {
			t.Error("expected miss")
		}
		stats := e.Stats()
		if stats.Misses != 1 {
			t.Errorf("expected 1 miss, got %d", stats.Misses)
		}
	})

	t.Run("overwrite existing key", func(t *testing.T) {
		e := newTestEngine(10)
		defer e.Close()

		e.Put("k1", "v1", 0)
		e.Put("k1", "v2", 0)
		v, hit := e.Get("k1")
		if !hit || v != "v2" {
			t.Errorf("expected v2, got %s hit=%v", v, hit)
		}
		stats := e.Stats()
		if stats.CurrentSize != 1 {
			t.Errorf("expected size 1 after overwrite, got %d", stats.CurrentSize)
		}
	})
}

func TestEngineCapacityEviction(t *testing.T) {
	e := newTestEngine(3)
	defer e.Close()

	e.Put("a", "1", 0)
	e.Put("b", "2", 0)
	e.Put("c", "3", 0)
	e.Put("d", "4", 0) // should evict "a", the least-recent entry

	if _, hit := e.Get("a"); hit {
		t.Error("expected a to be evicted")
	}
	for _, k := range []string{"b", "c", "d"} {
		if _, hit := e.Get(k); !hit {
			t.Errorf("expected %s to survive eviction", k)
		}
	}

	stats := e.Stats()
	if stats.CurrentSize > stats.Capacity {
		t.Errorf("size %d exceeds capacity %d", stats.CurrentSize, stats.Capacity)
	}
}

func TestEngineRecencyOrdering(t *testing.T) {
	e := newTestEngine(2)
	defer e.Close()

	e.Put("a", "1", 0)
	e.Put("b", "2", 0)
	e.Get("a") // touch a, making b the least-recent
	e.Put("c", "3", 0)

	if _, hit := e.Get("b"); hit {
		t.Error("expected b to be evicted as least-recently-used")
	}
	if _, hit := e.Get("a"); !hit {
		t.Error("expected a to survive, it was accessed more recently")
	}
	if _, hit := e.Get("c"); !hit {
		t.Error("expected c to survive, it is newest")
	}
}

func TestEngineTTLExpiry(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	e.Put("short", "v", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, hit := e.Get("short"); hit {
		t.Error("expected expired entry to miss")
	}

	statsBefore := e.Stats()
	e.Get("short")
	statsAfter := e.Stats()
	if statsAfter.Misses != statsBefore.Misses+1 {
		t.Error("expected exactly one additional miss on second get of expired key")
	}
}

func TestEngineNonExpiringTTL(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	for _, ttl := range []time.Duration{0, -1 * time.Second} {
		e.Put("k", "v", ttl)
		snap := e.Snapshot()
		if len(snap) != 1 || snap[0].TTLRemainingSecs != nil {
			t.Errorf("ttl=%v: expected non-expiring entry, got %+v", ttl, snap)
		}
	}
}

func TestEngineDelete(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	e.Put("k", "v", 0)
	if !e.Delete("k") {
		t.Error("expected delete to report existing key")
	}
	if e.Delete("k") {
		t.Error("expected delete of already-removed key to report false")
	}
	if _, hit := e.Get("k"); hit {
		t.Error("expected key to be gone after delete")
	}
}

func TestEngineClearPreservesCounters(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	e.Put("k", "v", 0)
	e.Get("k")
	e.Get("missing")

	e.Clear()

	stats := e.Stats()
	if stats.CurrentSize != 0 {
		t.Errorf("expected empty engine after clear, got size %d", stats.CurrentSize)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected counters untouched by clear, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestEngineStatsHitRate(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	if stats := e.Stats(); stats.HitRate != 0 {
		t.Errorf("expected 0 hit rate with no activity, got %f", stats.HitRate)
	}

	e.Put("k", "v", 0)
	e.Get("k")
	e.Get("missing")

	stats := e.Stats()
	if stats.HitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %f", stats.HitRate)
	}
}

func TestEngineSnapshotTTLRemaining(t *testing.T) {
	e := newTestEngine(10)
	defer e.Close()

	e.Put("k", "v", 10*time.Second)
	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 row, got %d", len(snap))
	}
	if snap[0].TTLRemainingSecs == nil {
		t.Fatal("expected ttl remaining to be set")
	}
	if *snap[0].TTLRemainingSecs > 10 || *snap[0].TTLRemainingSecs < 0 {
		t.Errorf("unexpected ttl remaining %d", *snap[0].TTLRemainingSecs)
	}
}

func TestEngineBackgroundSweep(t *testing.T) {
	e := New(10, 15*time.Millisecond)
	defer e.Close()

	e.Put("k", "v", 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	snap := e.Snapshot()
	if len(snap) != 0 {
		t.Errorf("expected sweeper to remove expired entry, snapshot=%+v", snap)
	}
}

func TestEnginePutAfterClose(t *testing.T) {
	e := newTestEngine(10)
	e.Close()

	err := e.Put("k", "v", 0)
	if err == nil {
		t.Fatal("expected error putting into closed engine")
	}
	if _, ok := err.(ErrShutdown); !ok {
		t.Errorf("expected ErrShutdown, got %T", err)
	}
}

func TestEngineConcurrency(t *testing.T) {
	e := newTestEngine(100)
	defer e.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", id%20)
			e.Put(key, fmt.Sprintf("v%d", id), 0)
			e.Get(key)
			e.Stats()
			e.Snapshot()
		}(i)
	}
	wg.Wait()

	stats := e.Stats()
	if stats.CurrentSize > stats.Capacity {
		t.Errorf("size %d exceeds capacity %d after concurrent access", stats.CurrentSize, stats.Capacity)
	}
}

func TestEngineNeverExceedsCapacity(t *testing.T) {
	e := newTestEngine(5)
	defer e.Close()

	for i := 0; i < 100; i++ {
		e.Put(fmt.Sprintf("k%d", i), "v", 0)
		if stats := e.Stats(); stats.CurrentSize > stats.Capacity {
			t.Fatalf("capacity invariant violated at i=%d: size=%d capacity=%d", i, stats.CurrentSize, stats.Capacity)
		}
	}
}
