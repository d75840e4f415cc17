package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TradeExecuted struct {
	EntryID    uint            `json:"entry_id"`
	UserID     string          `json:"user_id"`
	Symbol     string          `json:"symbol"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Cash       decimal.Decimal `json:"cash"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewTradeExecuted(entry LedgerEntry, cash decimal.Decimal) TradeExecuted {
	return TradeExecuted{
		EntryID:    entry.ID,
		UserID:     entry.UserID.String(),
		Symbol:     entry.Symbol,
		Shares:     entry.Shares,
		Price:      entry.Price,
		Cash:       cash,
		OccurredAt: entry.TransactedAt,
	}
}
