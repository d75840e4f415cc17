package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/events"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/quote"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradingService is the portfolio engine: it prices holdings and executes
// trades against the ledger store.
type TradingService interface {
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	Holdings(ctx context.Context, userID uuid.UUID) ([]models.Holding, error)
	TotalValue(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	Portfolio(ctx context.Context, userID uuid.UUID) (*models.PortfolioView, error)
	Buy(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.TradeResult, error)
	Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.TradeResult, error)
	History(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

type tradingService struct {
	store     repository.LedgerStore
	quotes    quote.Provider
	publisher events.Publisher
	locks     *userLocks
	now       func() time.Time
	log       *slog.Logger
}

func NewTradingService(store repository.LedgerStore, quotes quote.Provider, publisher events.Publisher, log *slog.Logger) TradingService {
	if publisher == nil {
		publisher = events.Noop{}
	}

	return &tradingService{
		store:     store,
		quotes:    quotes,
		publisher: publisher,
		locks:     newUserLocks(),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

func (s *tradingService) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	symbol = quote.Normalize(symbol)
	if symbol == "" {
		return nil, errs.ErrInvalidSymbol
	}

	return s.lookup(ctx, symbol)
}

func (s *tradingService) Holdings(ctx context.Context, userID uuid.UUID) ([]models.Holding, error) {
	entries, err := s.store.ListLedgerEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}

	return s.priceHoldings(ctx, entries)
}

func (s *tradingService) TotalValue(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	view, err := s.Portfolio(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}

	return view.GrandTotal, nil
}

func (s *tradingService) Portfolio(ctx context.Context, userID uuid.UUID) (*models.PortfolioView, error) {
	var cash decimal.Decimal
	var entries []models.LedgerEntry

	// cash and ledger are read from the same snapshot
	err := s.store.WithinTx(ctx, func(tx repository.LedgerStore) error {
		var err error
		if cash, err = tx.GetCash(ctx, userID); err != nil {
			return err
		}
		entries, err = tx.ListLedgerEntries(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	holdings, err := s.priceHoldings(ctx, entries)
	if err != nil {
		return nil, err
	}

	holdingsValue := decimal.Zero
	for _, h := range holdings {
		holdingsValue = holdingsValue.Add(h.Total)
	}

	return &models.PortfolioView{
		UserID:        userID.String(),
		Cash:          cash,
		Holdings:      holdings,
		HoldingsValue: holdingsValue,
		GrandTotal:    cash.Add(holdingsValue),
	}, nil
}

func (s *tradingService) Buy(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.TradeResult, error) {
	symbol, q, err := s.prepareTrade(ctx, symbol, quantity, false)
	if err != nil {
		return nil, err
	}

	cost := q.Price.Mul(decimal.NewFromInt(quantity))

	unlock := s.locks.lock(userID)
	defer unlock()

	var result models.TradeResult
	err = s.store.WithinTx(ctx, func(tx repository.LedgerStore) error {
		cash, err := tx.GetCash(ctx, userID)
		if err != nil {
			return err
		}
		if cost.GreaterThan(cash) {
			return errs.ErrInsufficientFunds
		}

		newCash, err := tx.AdjustCash(ctx, userID, cost.Neg())
		if err != nil {
			return err
		}

		entry := models.LedgerEntry{
			UserID:       userID,
			Symbol:       symbol,
			Shares:       quantity,
			Price:        q.Price,
			TransactedAt: s.now(),
		}
		if err := tx.AppendLedgerEntry(ctx, &entry); err != nil {
			return err
		}

		result = models.TradeResult{Entry: entry, Quote: *q, Cash: newCash}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to buy %s: %w", symbol, err)
	}

	s.log.Info("trade executed",
		slog.String("side", "buy"),
		slog.String("userID", userID.String()),
		slog.String("symbol", symbol),
		slog.Int64("shares", quantity),
		slog.String("price", q.Price.String()),
	)
	s.publish(ctx, result)

	return &result, nil
}

func (s *tradingService) Sell(ctx context.Context, userID uuid.UUID, symbol string, quantity int64) (*models.TradeResult, error) {
	symbol, q, err := s.prepareTrade(ctx, symbol, quantity, true)
	if err != nil {
		return nil, err
	}

	proceeds := q.Price.Mul(decimal.NewFromInt(quantity))

	unlock := s.locks.lock(userID)
	defer unlock()

	var result models.TradeResult
	err = s.store.WithinTx(ctx, func(tx repository.LedgerStore) error {
		// locks the account row before the holding is computed
		if _, err := tx.GetCash(ctx, userID); err != nil {
			return err
		}

		entries, err := tx.ListLedgerEntries(ctx, userID)
		if err != nil {
			return err
		}
		if quantity > sharesHeld(entries, symbol) {
			return errs.ErrInsufficientShares
		}

		newCash, err := tx.AdjustCash(ctx, userID, proceeds)
		if err != nil {
			return err
		}

		entry := models.LedgerEntry{
			UserID:       userID,
			Symbol:       symbol,
			Shares:       -quantity,
			Price:        q.Price,
			TransactedAt: s.now(),
		}
		if err := tx.AppendLedgerEntry(ctx, &entry); err != nil {
			return err
		}

		result = models.TradeResult{Entry: entry, Quote: *q, Cash: newCash}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sell %s: %w", symbol, err)
	}

	s.log.Info("trade executed",
		slog.String("side", "sell"),
		slog.String("userID", userID.String()),
		slog.String("symbol", symbol),
		slog.Int64("shares", quantity),
		slog.String("price", q.Price.String()),
	)
	s.publish(ctx, result)

	return &result, nil
}

func (s *tradingService) History(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	if _, err := s.store.GetCash(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	entries, err := s.store.ListLedgerEntries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}

	return entries, nil
}

func (s *tradingService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, errs.ErrInvalidAmount
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	var cash decimal.Decimal
	err := s.store.WithinTx(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.GetCash(ctx, userID); err != nil {
			return err
		}

		var err error
		cash, err = tx.AdjustCash(ctx, userID, amount)
		return err
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to deposit: %w", err)
	}

	s.log.Info("cash deposited",
		slog.String("userID", userID.String()),
		slog.String("amount", amount.String()),
	)

	return cash, nil
}

// ParseQuantity reads a share count typed by a user.
func ParseQuantity(raw string) (int64, error) {
	quantity, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || quantity < 1 {
		return 0, errs.ErrInvalidQuantity
	}

	return quantity, nil
}

// ParseAmount reads a cash amount typed by a user.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, errs.ErrInvalidAmount
	}

	return amount, nil
}

// prepareTrade validates input and prices the symbol. A buy reports a bad
// symbol before a bad quantity, a sell the other way round.
func (s *tradingService) prepareTrade(ctx context.Context, symbol string, quantity int64, quantityFirst bool) (string, *models.Quote, error) {
	symbol = quote.Normalize(symbol)
	if quantityFirst && quantity < 1 {
		return "", nil, errs.ErrInvalidQuantity
	}
	if symbol == "" {
		return "", nil, errs.ErrInvalidSymbol
	}
	if quantity < 1 {
		return "", nil, errs.ErrInvalidQuantity
	}

	q, err := s.lookup(ctx, symbol)
	if err != nil {
		return "", nil, err
	}

	return symbol, q, nil
}

func (s *tradingService) lookup(ctx context.Context, symbol string) (*models.Quote, error) {
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidSymbol) {
			return nil, errs.ErrInvalidSymbol
		}
		return nil, &errs.LookupError{Symbol: symbol, Err: err}
	}

	return q, nil
}

// priceHoldings looks every open position up once. Any failed lookup fails
// the whole call, including a symbol that no longer resolves.
func (s *tradingService) priceHoldings(ctx context.Context, entries []models.LedgerEntry) ([]models.Holding, error) {
	positions := openPositions(entries)
	holdings := make([]models.Holding, 0, len(positions))

	for _, p := range positions {
		q, err := s.quotes.Lookup(ctx, p.symbol)
		if err != nil {
			return nil, &errs.LookupError{Symbol: p.symbol, Err: err}
		}

		holdings = append(holdings, models.Holding{
			Symbol: p.symbol,
			Name:   q.Name,
			Shares: p.shares,
			Price:  q.Price,
			Total:  q.Price.Mul(decimal.NewFromInt(p.shares)),
		})
	}

	return holdings, nil
}

func (s *tradingService) publish(ctx context.Context, result models.TradeResult) {
	event := models.NewTradeExecuted(result.Entry, result.Cash)
	if err := s.publisher.PublishTrade(ctx, event); err != nil {
		s.log.Warn("failed to publish trade event",
			slog.String("userID", event.UserID),
			slog.Uint64("entryID", uint64(event.EntryID)),
			slog.String("error", err.Error()),
		)
	}
}
