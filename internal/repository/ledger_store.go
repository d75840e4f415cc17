package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore holds per-user cash and the append-only trade ledger.
//
// AdjustCash must refuse, without changing anything, a delta that would
// leave the balance negative. WithinTx runs fn against a store bound to a
// single transaction; inside it GetCash locks the user's row.
type LedgerStore interface {
	GetCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	AdjustCash(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error
	ListLedgerEntries(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error)
	WithinTx(ctx context.Context, fn func(LedgerStore) error) error
}

type ledgerStore struct {
	db   *gorm.DB
	inTx bool
}

func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &ledgerStore{db: db}
}

func (s *ledgerStore) GetCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var user models.User

	query := s.db.WithContext(ctx).Select("id", "cash")
	if s.inTx {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	if err := query.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, errs.ErrNotFound
		}
		return decimal.Zero, storeErr(err)
	}

	return user.Cash, nil
}

func (s *ledgerStore) AdjustCash(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND cash + ? >= 0", userID, delta).
		Update("cash", gorm.Expr("cash + ?", delta))

	if result.Error != nil {
		return decimal.Zero, storeErr(result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := s.GetCash(ctx, userID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, errs.ErrInsufficientFunds
	}

	return s.GetCash(ctx, userID)
}

func (s *ledgerStore) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *ledgerStore) ListLedgerEntries(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry

	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id asc").Find(&entries).Error; err != nil {
		return nil, storeErr(err)
	}

	return entries, nil
}

func (s *ledgerStore) WithinTx(ctx context.Context, fn func(LedgerStore) error) error {
	if s.inTx {
		return fn(s)
	}

	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(&ledgerStore{db: tx, inTx: true})
		return fnErr
	})

	// begin or commit failed
	if err != nil && fnErr == nil {
		return storeErr(err)
	}

	return err
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %s", errs.ErrStoreUnavailable, err.Error())
}
