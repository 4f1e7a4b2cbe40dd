package healthcache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mecanimovil/api"
	"mecanimovil/config"
	"mecanimovil/store"
)

// --- Mock fetcher ---

type mockFetcher struct {
	calls int
	snap  *api.HealthSnapshot
	err   error
}

func (m *mockFetcher) GetVehicleHealth(vehicleID string) (*api.HealthSnapshot, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

// --- Mock durable tier ---

type mockDurable struct {
	reports map[string]*store.HealthReport
	putErr  error
}

func newMockDurable() *mockDurable {
	return &mockDurable{reports: make(map[string]*store.HealthReport)}
}

func (m *mockDurable) GetHealthReport(vehicleID string) (*store.HealthReport, error) {
	return m.reports[vehicleID], nil
}

func (m *mockDurable) PutHealthReport(r *store.HealthReport) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.reports[r.VehicleID] = r
	return nil
}

func (m *mockDurable) DeleteHealthReport(vehicleID string) error {
	delete(m.reports, vehicleID)
	return nil
}

// --- Helpers ---

func testSnapshot(vehicleID string, score float64) *api.HealthSnapshot {
	raw := []byte(fmt.Sprintf(`{"vehicle_id":"%s","score":%.1f,"alert":false}`, vehicleID, score))
	snap, err := api.DecodeHealthSnapshot(vehicleID, raw)
	if err != nil {
		panic(err)
	}
	return snap
}

func newTestCache(fetcher *mockFetcher, durable DurableTier, ttl time.Duration) (*Cache, *time.Time) {
	c := New(fetcher, durable, ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	c.now = func() time.Time { return *clock }
	return c, clock
}

// --- Tests ---

func TestGetCachesWithinTTL(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, clock := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	snap, err := c.Get("VIN-100", false)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	if snap.VehicleID != "VIN-100" || snap.Score != 87.5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected 1 remote call, got %d", fetcher.calls)
	}

	// 4 minutes later the entry is still fresh: no second remote call.
	*clock = clock.Add(4 * time.Minute)
	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected cached read, got %d remote calls", fetcher.calls)
	}
}

func TestGetRefetchesAfterTTL(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, clock := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}

	*clock = clock.Add(5*time.Minute + time.Second)
	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected refetch after ttl, got %d remote calls", fetcher.calls)
	}
}

func TestTTLMeasuredFromFetchNotAccess(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, clock := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Repeated reads must not extend the entry's life.
	for i := 0; i < 4; i++ {
		*clock = clock.Add(time.Minute)
		if _, err := c.Get("VIN-100", false); err != nil {
			t.Fatalf("read at minute %d: %v", i+1, err)
		}
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected cached reads, got %d remote calls", fetcher.calls)
	}

	*clock = clock.Add(90 * time.Second)
	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("read past expiry: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("expected refetch at 5m30s after original fetch, got %d calls", fetcher.calls)
	}
}

func TestForceRefreshBypassesFreshEntry(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, _ := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if _, err := c.Get("VIN-100", true); err != nil {
		t.Fatalf("forced get: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("force refresh must hit the remote, got %d calls", fetcher.calls)
	}
}

func TestForceRefreshFailureLeavesNothingCached(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	durable := newMockDurable()
	c, _ := newTestCache(fetcher, durable, 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// The entry is dropped before the forced fetch; a failure must not
	// resurrect it.
	fetcher.err = fmt.Errorf("network down")
	if _, err := c.Get("VIN-100", true); err == nil {
		t.Fatal("expected error from forced fetch")
	}
	if durable.reports["VIN-100"] != nil {
		t.Fatal("durable tier should be empty after failed force refresh")
	}

	fetcher.err = fmt.Errorf("still down")
	if _, err := c.Get("VIN-100", false); err == nil {
		t.Fatal("expected error, not stale data")
	}
}

func TestFetchErrorPropagatesNoStale(t *testing.T) {
	fetcher := &mockFetcher{err: fmt.Errorf("dns failure")}
	durable := newMockDurable()
	c, _ := newTestCache(fetcher, durable, 5*time.Minute)

	if _, err := c.Get("VIN-200", false); err == nil {
		t.Fatal("expected fetch error to propagate")
	}
	if len(durable.reports) != 0 {
		t.Fatal("failed fetch must leave no cache record")
	}
}

func TestExpiredEntryErrorDoesNotServeStale(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, clock := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}

	*clock = clock.Add(10 * time.Minute)
	fetcher.err = fmt.Errorf("timeout")
	if _, err := c.Get("VIN-100", false); err == nil {
		t.Fatal("expired entry plus fetch failure must surface the error")
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	c, _ := newTestCache(fetcher, newMockDurable(), 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("get: %v", err)
	}

	c.Invalidate("VIN-100")
	c.Invalidate("VIN-100")
	c.Invalidate("VIN-999") // never cached

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("get after invalidate: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("invalidate must force a refetch, got %d calls", fetcher.calls)
	}
}

func TestDurableTierPromotion(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	durable := newMockDurable()
	c, clock := newTestCache(fetcher, durable, 5*time.Minute)

	if _, err := c.Get("VIN-100", false); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Simulate a restart: fast tier gone, durable tier intact.
	c2, clock2 := newTestCache(fetcher, durable, 5*time.Minute)
	*clock2 = clock.Add(2 * time.Minute)

	snap, err := c2.Get("VIN-100", false)
	if err != nil {
		t.Fatalf("get after restart: %v", err)
	}
	if snap.Score != 87.5 {
		t.Fatalf("unexpected promoted snapshot: %+v", snap)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fresh durable entry should avoid remote fetch, got %d calls", fetcher.calls)
	}
}

func TestDurableWriteFailureStillReturnsSnapshot(t *testing.T) {
	fetcher := &mockFetcher{snap: testSnapshot("VIN-100", 87.5)}
	durable := newMockDurable()
	durable.putErr = fmt.Errorf("disk full")
	c, _ := newTestCache(fetcher, durable, 5*time.Minute)

	snap, err := c.Get("VIN-100", false)
	if err != nil {
		t.Fatalf("get with failing durable tier: %v", err)
	}
	if snap.Score != 87.5 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestSQLDurableTier(t *testing.T) {
	dir := t.TempDir()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(dir, "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fetcher := &mockFetcher{snap: testSnapshot("VIN-300", 42.0)}
	c, clock := newTestCache(fetcher, db, 5*time.Minute)

	if _, err := c.Get("VIN-300", false); err != nil {
		t.Fatalf("get: %v", err)
	}

	// New cache over the same database: durable hit, no remote call.
	c2, clock2 := newTestCache(fetcher, db, 5*time.Minute)
	*clock2 = clock.Add(time.Minute)
	snap, err := c2.Get("VIN-300", false)
	if err != nil {
		t.Fatalf("get from sql tier: %v", err)
	}
	if snap.VehicleID != "VIN-300" || snap.Score != 42.0 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if fetcher.calls != 1 {
		t.Fatalf("expected durable hit, got %d remote calls", fetcher.calls)
	}

	c2.Invalidate("VIN-300")
	rec, err := db.GetHealthReport("VIN-300")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if rec != nil {
		t.Fatal("invalidate should remove the durable record")
	}
}
