package models

import (
	"github.com/shopspring/decimal"
)

type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

type Holding struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Shares int64           `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	Total  decimal.Decimal `json:"total"`
}

type PortfolioView struct {
	UserID        string          `json:"userID"`
	Cash          decimal.Decimal `json:"cash"`
	Holdings      []Holding       `json:"holdings"`
	HoldingsValue decimal.Decimal `json:"holdingsValue"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
}

type TradeResult struct {
	Entry LedgerEntry     `json:"entry"`
	Quote Quote           `json:"quote"`
	Cash  decimal.Decimal `json:"cash"`
}
