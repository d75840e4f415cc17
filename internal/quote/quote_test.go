package quote_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/quote"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

func newIEXServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/stock/AAPL/quote":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"symbol":"AAPL","companyName":"Apple Inc","latestPrice":187.123456}`)
		case "/stock/BOOM/quote":
			w.WriteHeader(http.StatusInternalServerError)
		case "/stock/ZERO/quote":
			io.WriteString(w, `{"symbol":"ZERO","companyName":"Zero","latestPrice":0}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientLookup(t *testing.T) {
	srv := newIEXServer(t)
	client := quote.NewClient(srv.URL+"/", "secret", time.Second, discardLog)
	ctx := context.Background()

	t.Run("known_symbol", func(t *testing.T) {
		q, err := client.Lookup(ctx, " aapl ")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", q.Symbol)
		assert.Equal(t, "Apple Inc", q.Name)
		assert.True(t, q.Price.Equal(decimal.RequireFromString("187.1235")), "price %s", q.Price)
	})

	t.Run("unknown_symbol", func(t *testing.T) {
		_, err := client.Lookup(ctx, "NOPE")
		assert.ErrorIs(t, err, errs.ErrInvalidSymbol)
	})

	t.Run("blank_symbol", func(t *testing.T) {
		_, err := client.Lookup(ctx, "  ")
		assert.ErrorIs(t, err, errs.ErrInvalidSymbol)
	})

	t.Run("non_positive_price", func(t *testing.T) {
		_, err := client.Lookup(ctx, "ZERO")
		assert.ErrorIs(t, err, errs.ErrInvalidSymbol)
	})

	t.Run("upstream_failure", func(t *testing.T) {
		_, err := client.Lookup(ctx, "BOOM")
		assert.ErrorIs(t, err, errs.ErrLookupUnavailable)
	})

	t.Run("bad_api_key", func(t *testing.T) {
		bad := quote.NewClient(srv.URL, "wrong", time.Second, discardLog)
		_, err := bad.Lookup(ctx, "AAPL")
		assert.ErrorIs(t, err, errs.ErrLookupUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		down := quote.NewClient("http://127.0.0.1:1", "secret", time.Second, discardLog)
		_, err := down.Lookup(ctx, "AAPL")
		assert.ErrorIs(t, err, errs.ErrLookupUnavailable)
	})
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProvider) Lookup(_ context.Context, symbol string) (*models.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &models.Quote{Symbol: symbol, Name: symbol + " Corp", Price: decimal.NewFromInt(10)}, nil
}

// renamingProvider answers with its own spelling of the ticker.
type renamingProvider struct {
	canonical string
	calls     int
}

func (p *renamingProvider) Lookup(_ context.Context, _ string) (*models.Quote, error) {
	p.calls++
	return &models.Quote{Symbol: p.canonical, Name: "Berkshire Hathaway", Price: decimal.NewFromInt(400)}, nil
}

type mapCache struct {
	quotes  map[string]models.Quote
	readErr error
}

func (c *mapCache) GetQuote(_ context.Context, symbol string) (*models.Quote, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	q, ok := c.quotes[symbol]
	if !ok {
		return nil, nil
	}
	return &q, nil
}

func (c *mapCache) SetQuote(_ context.Context, symbol string, q *models.Quote, _ time.Duration) error {
	c.quotes[symbol] = *q
	return nil
}

func TestCachedLookup(t *testing.T) {
	ctx := context.Background()

	t.Run("second_lookup_is_served_from_cache", func(t *testing.T) {
		upstream := &countingProvider{}
		cached := quote.NewCached(upstream, &mapCache{quotes: map[string]models.Quote{}}, time.Minute, discardLog)

		first, err := cached.Lookup(ctx, "aaa")
		require.NoError(t, err)
		second, err := cached.Lookup(ctx, "AAA")
		require.NoError(t, err)

		assert.Equal(t, 1, upstream.calls)
		assert.Equal(t, first, second)
	})

	t.Run("cached_under_requested_symbol", func(t *testing.T) {
		upstream := &renamingProvider{canonical: "BRK.B"}
		cache := &mapCache{quotes: map[string]models.Quote{}}
		cached := quote.NewCached(upstream, cache, time.Minute, discardLog)

		for i := 0; i < 2; i++ {
			q, err := cached.Lookup(ctx, "brk-b")
			require.NoError(t, err)
			assert.Equal(t, "BRK.B", q.Symbol)
		}

		assert.Equal(t, 1, upstream.calls)
		assert.Contains(t, cache.quotes, "BRK-B")
	})

	t.Run("errors_are_not_cached", func(t *testing.T) {
		upstream := &countingProvider{err: errs.ErrLookupUnavailable}
		cache := &mapCache{quotes: map[string]models.Quote{}}
		cached := quote.NewCached(upstream, cache, time.Minute, discardLog)

		_, err := cached.Lookup(ctx, "AAA")
		assert.ErrorIs(t, err, errs.ErrLookupUnavailable)
		assert.Empty(t, cache.quotes)
	})

	t.Run("cache_failure_falls_through", func(t *testing.T) {
		upstream := &countingProvider{}
		cache := &mapCache{quotes: map[string]models.Quote{}, readErr: errors.New("redis down")}
		cached := quote.NewCached(upstream, cache, time.Minute, discardLog)

		q, err := cached.Lookup(ctx, "AAA")
		require.NoError(t, err)
		assert.Equal(t, "AAA", q.Symbol)
		assert.Equal(t, 1, upstream.calls)
	})
}
