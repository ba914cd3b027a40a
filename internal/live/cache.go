package live

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultCache guarda o resultado de um mercado/dia já serializado.
// A entrada é apagada a cada declaração ou revogação.
type ResultCache struct {
	R   redis.Cmdable
	TTL time.Duration
}

func NewResultCache(r redis.Cmdable, ttl time.Duration) *ResultCache {
	return &ResultCache{R: r, TTL: ttl}
}

func key(marketID, day string) string { return "matka:result:" + marketID + ":" + day }

func (c *ResultCache) Get(ctx context.Context, marketID, day string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key(marketID, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *ResultCache) Set(ctx context.Context, marketID, day string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, key(marketID, day), b, c.TTL).Err()
}

func (c *ResultCache) Invalidate(ctx context.Context, marketID, day string) error {
	return c.R.Del(ctx, key(marketID, day)).Err()
}
