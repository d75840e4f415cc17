package quote

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
)

type Cache interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	SetQuote(ctx context.Context, symbol string, q *models.Quote, ttl time.Duration) error
}

// Cached is a read-through Provider. Cache failures are logged and the
// lookup falls through to the upstream provider. Only successful quotes
// are stored.
type Cached struct {
	upstream Provider
	cache    Cache
	ttl      time.Duration
	log      *slog.Logger
}

func NewCached(upstream Provider, cache Cache, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		log:      log,
	}
}

func (c *Cached) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = Normalize(symbol)

	q, err := c.cache.GetQuote(ctx, symbol)
	if err != nil {
		c.log.Warn("quote cache read failed", "symbol", symbol, "error", err)
	}
	if q != nil {
		return q, nil
	}

	q, err = c.upstream.Lookup(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// stored under the requested symbol, which is the key reads use
	if err := c.cache.SetQuote(ctx, symbol, q, c.ttl); err != nil {
		c.log.Warn("quote cache write failed", "symbol", symbol, "error", err)
	}

	return q, nil
}
