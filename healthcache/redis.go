package healthcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"mecanimovil/store"
)

// RedisTier is a durable tier backed by Redis, for deployments where the
// companion shares a cache host across devices. Keys are namespaced under
// mecanimovil:health.
type RedisTier struct {
	client *redis.Client
}

func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

func healthKey(vehicleID string) string {
	return "mecanimovil:health:" + vehicleID
}

type redisReport struct {
	Payload   []byte `json:"payload"`
	FetchedAt int64  `json:"fetched_at"`
}

func (r *RedisTier) GetHealthReport(vehicleID string) (*store.HealthReport, error) {
	ctx := context.Background()
	data, err := r.client.Get(ctx, healthKey(vehicleID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec redisReport
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &store.HealthReport{
		VehicleID: vehicleID,
		Payload:   rec.Payload,
		FetchedAt: time.UnixMilli(rec.FetchedAt),
	}, nil
}

func (r *RedisTier) PutHealthReport(rep *store.HealthReport) error {
	data, err := json.Marshal(redisReport{
		Payload:   rep.Payload,
		FetchedAt: rep.FetchedAt.UnixMilli(),
	})
	if err != nil {
		return err
	}
	return r.client.Set(context.Background(), healthKey(rep.VehicleID), data, 0).Err()
}

func (r *RedisTier) DeleteHealthReport(vehicleID string) error {
	return r.client.Del(context.Background(), healthKey(vehicleID)).Err()
}
