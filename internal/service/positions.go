package service

import (
	"sort"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
)

type position struct {
	symbol string
	shares int64
}

// openPositions sums the ledger per symbol and keeps only positive totals,
// ordered by symbol.
func openPositions(entries []models.LedgerEntry) []position {
	totals := make(map[string]int64)
	for _, e := range entries {
		totals[e.Symbol] += e.Shares
	}

	positions := make([]position, 0, len(totals))
	for symbol, shares := range totals {
		if shares > 0 {
			positions = append(positions, position{symbol: symbol, shares: shares})
		}
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].symbol < positions[j].symbol
	})

	return positions
}

func sharesHeld(entries []models.LedgerEntry, symbol string) int64 {
	var held int64
	for _, e := range entries {
		if e.Symbol == symbol {
			held += e.Shares
		}
	}
	return held
}
