package calls

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache mirrors ongoing-call state in Redis for cheap realtime reads.
// The database remains the source of truth; every cache method is
// best-effort and nil-safe so the billing path never depends on Redis.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func callKey(callID string) string { return "call:" + callID }

// SetOngoing writes the hash for a freshly started call.
func (c *Cache) SetOngoing(ctx context.Context, call Call, ttl time.Duration) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	key := callKey(call.CallID)
	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key,
		"caller_id", call.CallerID,
		"listener_id", call.ListenerID,
		"call_type", string(call.CallType),
		"status", string(call.Status),
		"coins_spent", strconv.FormatInt(call.CoinsSpent, 10),
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// UpdateCoinsSpent refreshes the mirrored spend counter after a billing tick.
func (c *Cache) UpdateCoinsSpent(ctx context.Context, callID string, coinsSpent int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.HSet(ctx, callKey(callID), "coins_spent", strconv.FormatInt(coinsSpent, 10)).Err()
}

// Delete removes the mirror once a call is settled.
func (c *Cache) Delete(ctx context.Context, callID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, callKey(callID)).Err()
}
