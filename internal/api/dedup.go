/**
 * @description
 * Replay protection for the custody webhook. Providers redeliver events until
 * acknowledged, and may deliver the same event to several instances; processed
 * event ids are therefore recorded in Redis with a TTL so all instances agree.
 * When Redis is not configured the service degrades to an in-process map, which
 * protects a single instance against redeliveries but not a fleet.
 */

package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper records processed webhook event ids. An event is marked only
// after its side effects completed, so a failed delivery stays eligible for
// redelivery.
type EventDeduper interface {
	// Seen reports whether the event id was already processed within the
	// retention window.
	Seen(ctx context.Context, eventID string) (bool, error)
	// MarkProcessed records the event id as processed.
	MarkProcessed(ctx context.Context, eventID string) error
}

// RedisEventDeduper implements distributed dedup using Redis keys with a TTL.
type RedisEventDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisEventDeduper creates a Redis-backed deduper.
func NewRedisEventDeduper(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisEventDeduper {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "platform:webhook_events"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisEventDeduper{client: client, prefix: trimmedPrefix, ttl: ttl}
}

func (d *RedisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *RedisEventDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, d.key(eventID), 1, d.ttl).Err()
}

func (d *RedisEventDeduper) key(eventID string) string {
	return d.prefix + ":" + strings.TrimSpace(eventID)
}

// LocalEventDeduper is the single-instance fallback used when Redis is absent.
type LocalEventDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
}

// NewLocalEventDeduper creates an in-process deduper.
func NewLocalEventDeduper(ttl time.Duration) *LocalEventDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &LocalEventDeduper{seen: make(map[string]time.Time), ttl: ttl}
}

func (d *LocalEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, at := range d.seen {
		if now.Sub(at) > d.ttl {
			delete(d.seen, id)
		}
	}
	_, ok := d.seen[eventID]
	return ok, nil
}

func (d *LocalEventDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = time.Now()
	return nil
}
