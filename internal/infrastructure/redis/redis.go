package redis

import (
	"context"
	"errors"
	"time"

	"github.com/courtside/registration-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	Client *redis.Client
	TTL    time.Duration
}

func New(addr, pass string, db int, ttl time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{Client: rdb, TTL: ttl}
}

// GetTournamentOpen reports whether the tournament is known to accept
// registrations. Used as a fast-fail before the admission transaction;
// correctness never depends on it.
func (c *Cache) GetTournamentOpen(ctx context.Context, tournamentID uuid.UUID) (bool, error) {
	val, err := c.Client.Get(ctx, "tournament:open:"+tournamentID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, domain.ErrCacheMiss
		}
		return false, err
	}
	return val == "1", nil
}

func (c *Cache) SetTournamentOpen(ctx context.Context, tournamentID uuid.UUID, open bool) error {
	val := "0"
	if open {
		val = "1"
	}
	return c.Client.Set(ctx, "tournament:open:"+tournamentID.String(), val, c.TTL).Err()
}

// AllowRequest: Simple Fixed Window Rate Limit
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
