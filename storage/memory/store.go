package memory

import (
	"context"
	"sync"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerStore is an in-memory repository.LedgerStore. WithinTx works on a
// copy of the state and swaps it in only when the callback succeeds.
type LedgerStore struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	cash    map[uuid.UUID]decimal.Decimal
	entries []models.LedgerEntry
	nextID  uint
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		state: &state{
			cash:    make(map[uuid.UUID]decimal.Decimal),
			entries: make([]models.LedgerEntry, 0),
			nextID:  1,
		},
	}
}

// CreateAccount registers userID with an opening balance.
func (m *LedgerStore) CreateAccount(userID uuid.UUID, cash decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.cash[userID] = cash
}

func (m *LedgerStore) GetCash(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.getCash(userID)
}

func (m *LedgerStore) AdjustCash(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.adjustCash(userID, delta)
}

func (m *LedgerStore) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.append(entry)
	return nil
}

func (m *LedgerStore) ListLedgerEntries(_ context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state.list(userID), nil
}

func (m *LedgerStore) WithinTx(_ context.Context, fn func(repository.LedgerStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &txStore{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}

	m.state = tx.state
	return nil
}

// txStore is the view handed to WithinTx callbacks. The parent lock is
// already held.
type txStore struct {
	state *state
}

func (t *txStore) GetCash(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return t.state.getCash(userID)
}

func (t *txStore) AdjustCash(_ context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	return t.state.adjustCash(userID, delta)
}

func (t *txStore) AppendLedgerEntry(_ context.Context, entry *models.LedgerEntry) error {
	t.state.append(entry)
	return nil
}

func (t *txStore) ListLedgerEntries(_ context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	return t.state.list(userID), nil
}

func (t *txStore) WithinTx(_ context.Context, fn func(repository.LedgerStore) error) error {
	return fn(t)
}

func (s *state) getCash(userID uuid.UUID) (decimal.Decimal, error) {
	cash, ok := s.cash[userID]
	if !ok {
		return decimal.Zero, errs.ErrNotFound
	}
	return cash, nil
}

func (s *state) adjustCash(userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	cash, ok := s.cash[userID]
	if !ok {
		return decimal.Zero, errs.ErrNotFound
	}

	updated := cash.Add(delta)
	if updated.IsNegative() {
		return decimal.Zero, errs.ErrInsufficientFunds
	}

	s.cash[userID] = updated
	return updated, nil
}

func (s *state) append(entry *models.LedgerEntry) {
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, *entry)
}

func (s *state) list(userID uuid.UUID) []models.LedgerEntry {
	var result []models.LedgerEntry

	for _, e := range s.entries {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result
}

func (s *state) clone() *state {
	cash := make(map[uuid.UUID]decimal.Decimal, len(s.cash))
	for id, c := range s.cash {
		cash[id] = c
	}

	entries := make([]models.LedgerEntry, len(s.entries))
	copy(entries, s.entries)

	return &state{cash: cash, entries: entries, nextID: s.nextID}
}

var _ repository.LedgerStore = (*LedgerStore)(nil)
