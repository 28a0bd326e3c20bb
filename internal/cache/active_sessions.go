// Package cache mirrors active parking sessions into Redis for quick
// lookups by gate hardware and dashboards. The cache is strictly
// best-effort; the session store stays the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveVisit is the cached projection of an active session.
type ActiveVisit struct {
	SessionID     int64     `json:"session_id"`
	VehicleNumber string    `json:"vehicle_number"`
	EntryTime     time.Time `json:"entry_time"`
}

// ActiveSessions manages the active visit cache.
type ActiveSessions struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActiveSessions returns a redis-backed cache.
func NewActiveSessions(client *redis.Client, ttl time.Duration) *ActiveSessions {
	return &ActiveSessions{client: client, ttl: ttl}
}

func (c *ActiveSessions) key(vehicleNumber string) string {
	return fmt.Sprintf("parking:active:%s", vehicleNumber)
}

// Save caches the visit.
func (c *ActiveSessions) Save(ctx context.Context, visit ActiveVisit) error {
	data, err := json.Marshal(visit)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(visit.VehicleNumber), data, c.ttl).Err()
}

// Get returns the cached visit.
func (c *ActiveSessions) Get(ctx context.Context, vehicleNumber string) (*ActiveVisit, error) {
	result, err := c.client.Get(ctx, c.key(vehicleNumber)).Result()
	if err != nil {
		return nil, err
	}
	var visit ActiveVisit
	if err := json.Unmarshal([]byte(result), &visit); err != nil {
		return nil, err
	}
	return &visit, nil
}

// Delete drops the cached visit.
func (c *ActiveSessions) Delete(ctx context.Context, vehicleNumber string) error {
	return c.client.Del(ctx, c.key(vehicleNumber)).Err()
}
