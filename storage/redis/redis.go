package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/config"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/redis/go-redis/v9"
)

const quotePrefix = "quote:"

// QuoteCache keeps recent quotes in Redis as JSON under quote:{SYMBOL}.
type QuoteCache struct {
	client *redis.Client
	log    *slog.Logger
}

func New(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) (*QuoteCache, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("connected to redis", "addr", cfg.Addr)

	return &QuoteCache{client: client, log: log}, nil
}

// GetQuote returns nil without error on a cache miss.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	data, err := c.client.Get(ctx, quotePrefix+symbol).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var q models.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}

	return &q, nil
}

func (c *QuoteCache) SetQuote(ctx context.Context, symbol string, q *models.Quote, ttl time.Duration) error {
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, quotePrefix+symbol, data, ttl).Err()
}

func (c *QuoteCache) Close() {
	c.log.Info("closing redis client...")
	if err := c.client.Close(); err != nil {
		c.log.Warn("error closing redis client", "error", err)
	}
}
