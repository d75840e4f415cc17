package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/shopspring/decimal"
)

type iexQuote struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	LatestPrice float64 `json:"latestPrice"`
}

// Client queries an IEX Cloud compatible quote endpoint:
// GET {base}/stock/{symbol}/quote?token={key}.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (c *Client) Lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	const op = "quote.Client.Lookup"

	symbol = Normalize(symbol)
	if symbol == "" {
		return nil, errs.ErrInvalidSymbol
	}

	endpoint := fmt.Sprintf("%s/stock/%s/quote?token=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrLookupUnavailable, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("quote request failed", "symbol", symbol, "error", err)
		return nil, fmt.Errorf("%s: %w: %s", op, errs.ErrLookupUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errs.ErrInvalidSymbol
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		c.log.Warn("quote provider returned non-200 status", "symbol", symbol, "status", resp.Status)
		return nil, fmt.Errorf("%s: %w: status %s", op, errs.ErrLookupUnavailable, resp.Status)
	}

	var raw iexQuote
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%s: %w: decode: %s", op, errs.ErrLookupUnavailable, err.Error())
	}

	if raw.LatestPrice <= 0 {
		return nil, errs.ErrInvalidSymbol
	}

	q := &models.Quote{
		Symbol: Normalize(raw.Symbol),
		Name:   raw.CompanyName,
		Price:  decimal.NewFromFloat(raw.LatestPrice).Round(4),
	}
	if q.Symbol == "" {
		q.Symbol = symbol
	}

	return q, nil
}
