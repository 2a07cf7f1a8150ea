package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache memoizes whole snapshots in Redis for a short TTL. It is a
// pure optimization: a miss or a Redis failure just means recomputing from
// raw records, so errors here are swallowed.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache builds a cache; ttl should stay short so dashboards track
// fresh edits closely.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns a cached snapshot when one exists for the exact query.
func (c *SnapshotCache) Get(ctx context.Context, schoolID string, window Window, filters Filters) (Snapshot, bool) {
	if c == nil || c.client == nil {
		return Snapshot{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(schoolID, window, filters)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, false
	}
	return snap, true
}

// Set stores a snapshot, best effort.
func (c *SnapshotCache) Set(ctx context.Context, schoolID string, window Window, filters Filters, snap Snapshot) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(schoolID, window, filters), raw, c.ttl).Err()
}

func cacheKey(schoolID string, window Window, filters Filters) string {
	return fmt.Sprintf("analytics:%s:%s:%s:%s:%s:%s:%s",
		schoolID,
		window.From.Format(dateLayout), window.To.Format(dateLayout),
		filters.ClassID, filters.SubjectID, filters.TeacherID, filters.Status)
}
