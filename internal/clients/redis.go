package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Meixii/thesis-production-sub001/pkg/cache/redis"
)

// balanceTTL bounds staleness in case an invalidation is ever lost; the
// mutating services invalidate on commit, so entries rarely live this long.
const balanceTTL = 5 * time.Minute

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Prefix string
}

// RedisClient caches group balance snapshots. Balances are stored as decimal
// strings, never floats.
type RedisClient struct {
	store *redis.Store
}

func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ledger_"
	}

	store, err := redis.NewStore(redis.Config{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
		Timeout:     cfg.Timeout,
		Prefix:      prefix,
	})
	if err != nil {
		return nil, err
	}

	return &RedisClient{store: store}, nil
}

func (c *RedisClient) Close() {
	c.store.Close()
}

func balanceKey(groupID uuid.UUID) string {
	return "balance:" + groupID.String()
}

func (c *RedisClient) Get(ctx context.Context, groupID uuid.UUID) (decimal.Decimal, bool, error) {
	val, ok, err := c.store.Get(ctx, balanceKey(groupID))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get balance snapshot: %w", err)
	}
	if !ok {
		return decimal.Zero, false, nil
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		// A corrupt entry reads as a miss; the caller recomputes.
		return decimal.Zero, false, nil
	}
	return balance, true, nil
}

func (c *RedisClient) Set(ctx context.Context, groupID uuid.UUID, balance decimal.Decimal) error {
	if err := c.store.Set(ctx, balanceKey(groupID), balance.String(), balanceTTL); err != nil {
		return fmt.Errorf("set balance snapshot: %w", err)
	}
	return nil
}

func (c *RedisClient) Invalidate(ctx context.Context, groupID uuid.UUID) error {
	if err := c.store.Del(ctx, balanceKey(groupID)); err != nil {
		return fmt.Errorf("invalidate balance snapshot: %w", err)
	}
	return nil
}
