package events

import (
	"context"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
)

type Publisher interface {
	PublishTrade(ctx context.Context, event models.TradeExecuted) error
	Close() error
}

// Noop drops every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishTrade(context.Context, models.TradeExecuted) error { return nil }

func (Noop) Close() error { return nil }
