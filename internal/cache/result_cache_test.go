package cache

import (
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/swannekim/FURIOUS/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

var t0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func testKey(kind string, version int64) Key {
	return NewKey(kind, "cargo", "100", []track.ShipID{"200", "300"}, t0, 30, version)
}

// TestResultCache tests basic cache operations: put, get, stats.
func TestResultCache(t *testing.T) {
	c := NewResultCache(Config{Size: 4, TTL: time.Minute}, testLogger())

	if _, ok := c.Get(testKey("vo", 1)); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put(testKey("vo", 1), 42)
	got, ok := c.Get(testKey("vo", 1))
	if !ok || got != 42 {
		t.Fatalf("Get = %v, %v; want 42, true", got, ok)
	}

	// Another dataset version or kind is another entry.
	if _, ok := c.Get(testKey("vo", 2)); ok {
		t.Error("hit across dataset versions")
	}
	if _, ok := c.Get(testKey("v", 1)); ok {
		t.Error("hit across kinds")
	}

	stats := c.Stats()
	if stats.Entries != 1 {
		t.Errorf("entries: got %d, want 1", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 3 {
		t.Errorf("hits/misses: got %d/%d, want 1/3", stats.Hits, stats.Misses)
	}
}

func TestResultCacheEvictsOldest(t *testing.T) {
	c := NewResultCache(Config{Size: 2, TTL: time.Minute}, testLogger())

	for v := int64(1); v <= 3; v++ {
		c.Put(testKey("vo", v), v)
	}

	if _, ok := c.Get(testKey("vo", 1)); ok {
		t.Error("oldest entry not evicted")
	}
	stats := c.Stats()
	if stats.Entries != 2 {
		t.Errorf("entries: got %d, want 2", stats.Entries)
	}
	if stats.Evictions != 1 {
		t.Errorf("evictions: got %d, want 1", stats.Evictions)
	}
}

func TestResultCacheExpires(t *testing.T) {
	c := NewResultCache(Config{Size: 4, TTL: 20 * time.Millisecond}, testLogger())
	c.Put(testKey("v", 1), "sector")

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get(testKey("v", 1)); ok {
		t.Error("entry survived its TTL")
	}
}

func TestDo(t *testing.T) {
	c := NewResultCache(Config{Size: 4, TTL: time.Minute}, testLogger())
	calls := 0
	compute := func() (string, error) {
		calls++
		return "region", nil
	}

	for i := 0; i < 3; i++ {
		v, _, err := Do(c, testKey("vo", 1), compute)
		if err != nil || v != "region" {
			t.Fatalf("Do = %q, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	failing := func() (string, error) {
		calls++
		return "", boom
	}
	for i := 0; i < 2; i++ {
		if _, _, err := Do(c, testKey("computation", 1), failing); !errors.Is(err, boom) {
			t.Fatalf("error = %v, want boom", err)
		}
	}
	if calls != 3 {
		t.Errorf("errors were cached: compute called %d times, want 3", calls)
	}
}

func TestNilCacheComputesEveryTime(t *testing.T) {
	c := NewResultCache(Config{Size: 0}, testLogger())
	if c != nil {
		t.Fatal("size 0 should disable the cache")
	}

	calls := 0
	for i := 0; i < 2; i++ {
		_, cached, err := Do(c, testKey("v", 1), func() (int, error) {
			calls++
			return calls, nil
		})
		if err != nil || cached {
			t.Fatalf("cached = %v, err = %v", cached, err)
		}
	}
	if calls != 2 {
		t.Errorf("compute called %d times, want 2", calls)
	}
	if c.Stats().Enabled {
		t.Error("nil cache reports enabled")
	}
}

func TestNewKeyCanonical(t *testing.T) {
	at := time.Date(2023, 6, 1, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	a := NewKey("vo", "cargo", "1", []track.ShipID{"2", "3"}, at, 30, 7)
	b := NewKey("vo", "cargo", "1", []track.ShipID{"2", "3"}, at.UTC(), 30, 7)
	if a != b {
		t.Errorf("keys differ across zones: %+v vs %+v", a, b)
	}
}
