package quote

import (
	"context"
	"strings"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
)

// Provider resolves a ticker symbol to its current price and display name.
// An unknown symbol yields errs.ErrInvalidSymbol; transport or upstream
// failures yield errs.ErrLookupUnavailable.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*models.Quote, error)
}

// Normalize trims and uppercases a symbol as typed by a user.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
