package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"cylinder-ledger/internal/config"
)

const (
	StockListKey  = "ledger:stock"
	LowStockKey   = "ledger:low-stock"
	WarehousesKey = "ledger:warehouses"
	ProductsKey   = "ledger:products"
	TotalsPrefix  = "ledger:totals:"
	HistoryPrefix = "ledger:history:"
	ShortTTL      = 30 * time.Second
	MediumTTL     = 5 * time.Minute
	LongTTL       = 2 * time.Hour
)

func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return rdb, nil
}

// Cache is a read-side JSON cache over redis. A nil *Cache is a valid no-op
// cache, so callers never branch on whether redis is configured.
type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	if rdb == nil {
		return nil
	}
	return &Cache{rdb: rdb}
}

// GetJSON loads key into dest. Returns false on miss or any redis error;
// reads always fall back to the database.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, data, ttl).Err()
}

// Invalidate drops the given keys. Best effort: TTLs bound staleness if the
// delete is lost.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	_ = c.rdb.Del(ctx, keys...).Err()
}

// InvalidateStock drops every stock-derived key after a mutation.
func (c *Cache) InvalidateStock(ctx context.Context, productID int) {
	c.Invalidate(ctx, StockListKey, LowStockKey, fmt.Sprintf("%s%d", TotalsPrefix, productID))
}
