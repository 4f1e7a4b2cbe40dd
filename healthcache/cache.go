package healthcache

import (
	"sync"
	"time"

	"mecanimovil/api"
	"mecanimovil/store"
)

// Fetcher is the remote health read. *api.Client satisfies it.
type Fetcher interface {
	GetVehicleHealth(vehicleID string) (*api.HealthSnapshot, error)
}

// DurableTier is the persistent key-value tier. It survives process
// restarts; the fast tier does not. *store.DB and *RedisTier satisfy it.
type DurableTier interface {
	GetHealthReport(vehicleID string) (*store.HealthReport, error)
	PutHealthReport(r *store.HealthReport) error
	DeleteHealthReport(vehicleID string) error
}

type entry struct {
	snapshot  *api.HealthSnapshot
	fetchedAt time.Time
}

// Cache serves vehicle health snapshots through two tiers: an in-memory
// map checked first, then the durable tier, then the remote API. Entries
// are fresh for a fixed wall-clock TTL measured from their original fetch
// time, never from last access.
//
// Concurrent Get calls for the same vehicle racing an in-flight fetch are
// not collapsed; each decides from tier state at call time and the last
// writer wins. Both would carry equivalent fresh data.
type Cache struct {
	fetcher Fetcher
	durable DurableTier
	ttl     time.Duration

	mu     sync.Mutex
	memory map[string]entry

	now func() time.Time
}

func New(fetcher Fetcher, durable DurableTier, ttl time.Duration) *Cache {
	return &Cache{
		fetcher: fetcher,
		durable: durable,
		ttl:     ttl,
		memory:  make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the health snapshot for a vehicle. With forceRefresh the
// existing entry is dropped and a remote fetch always happens. A failed
// remote fetch propagates to the caller and leaves no cache record; the
// cache never substitutes stale or empty data for an error.
func (c *Cache) Get(vehicleID string, forceRefresh bool) (*api.HealthSnapshot, error) {
	now := c.now()

	if forceRefresh {
		c.drop(vehicleID)
	} else {
		c.mu.Lock()
		e, ok := c.memory[vehicleID]
		c.mu.Unlock()
		if ok && c.fresh(e.fetchedAt, now) {
			return e.snapshot, nil
		}

		rec, err := c.durable.GetHealthReport(vehicleID)
		if err == nil && rec != nil && c.fresh(rec.FetchedAt, now) {
			snap, decErr := api.DecodeHealthSnapshot(vehicleID, rec.Payload)
			if decErr == nil {
				c.mu.Lock()
				c.memory[vehicleID] = entry{snapshot: snap, fetchedAt: rec.FetchedAt}
				c.mu.Unlock()
				return snap, nil
			}
		}
	}

	snap, err := c.fetcher.GetVehicleHealth(vehicleID)
	if err != nil {
		return nil, err
	}

	fetchedAt := c.now()
	c.mu.Lock()
	c.memory[vehicleID] = entry{snapshot: snap, fetchedAt: fetchedAt}
	c.mu.Unlock()
	if err := c.durable.PutHealthReport(&store.HealthReport{
		VehicleID: vehicleID,
		Payload:   snap.Raw,
		FetchedAt: fetchedAt,
	}); err != nil {
		// The fast tier already holds the fresh snapshot; a durable write
		// failure only costs cross-restart reuse.
		return snap, nil
	}
	return snap, nil
}

// Invalidate removes any entry for the vehicle from both tiers.
// Invalidating an absent entry is a no-op.
func (c *Cache) Invalidate(vehicleID string) {
	c.drop(vehicleID)
}

func (c *Cache) drop(vehicleID string) {
	c.mu.Lock()
	delete(c.memory, vehicleID)
	c.mu.Unlock()
	c.durable.DeleteHealthReport(vehicleID)
}

func (c *Cache) fresh(fetchedAt, now time.Time) bool {
	return now.Sub(fetchedAt) < c.ttl
}
