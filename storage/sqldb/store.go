package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// LedgerStore implements repository.LedgerStore with hand written SQL over
// the users and ledger_entries tables.
type LedgerStore struct {
	db *sqlx.DB
	q  queryer
	tx bool
}

func Connect(driverName, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driverName, err)
	}
	return db, nil
}

func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{db: db, q: db}
}

func (s *LedgerStore) GetCash(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT cash FROM users WHERE id = ?`
	if s.tx && s.db.DriverName() == "postgres" {
		query += ` FOR UPDATE`
	}

	var cash decimal.Decimal
	if err := s.q.GetContext(ctx, &cash, s.db.Rebind(query), userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, errs.ErrNotFound
		}
		return decimal.Zero, storeErr(err)
	}

	return cash, nil
}

func (s *LedgerStore) AdjustCash(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	const query = `UPDATE users SET cash = cash + ? WHERE id = ? AND cash + ? >= 0`

	res, err := s.q.ExecContext(ctx, s.db.Rebind(query), delta, userID, delta)
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return decimal.Zero, storeErr(err)
	}

	if affected == 0 {
		if _, err := s.GetCash(ctx, userID); err != nil {
			return decimal.Zero, err
		}
		return decimal.Zero, errs.ErrInsufficientFunds
	}

	return s.GetCash(ctx, userID)
}

func (s *LedgerStore) AppendLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (user_id, symbol, shares, price, transacted_at)
	VALUES (?, ?, ?, ?, ?) RETURNING id`

	var id uint
	err := s.q.QueryRowxContext(ctx, s.db.Rebind(query),
		entry.UserID, entry.Symbol, entry.Shares, entry.Price, entry.TransactedAt,
	).Scan(&id)
	if err != nil {
		return storeErr(err)
	}

	entry.ID = id
	return nil
}

func (s *LedgerStore) ListLedgerEntries(ctx context.Context, userID uuid.UUID) ([]models.LedgerEntry, error) {
	const query = `SELECT id, user_id, symbol, shares, price, transacted_at
	FROM ledger_entries WHERE user_id = ? ORDER BY id`

	var entries []models.LedgerEntry
	if err := s.q.SelectContext(ctx, &entries, s.db.Rebind(query), userID); err != nil {
		return nil, storeErr(err)
	}

	return entries, nil
}

func (s *LedgerStore) WithinTx(ctx context.Context, fn func(repository.LedgerStore) error) (err error) {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return storeErr(err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&LedgerStore{db: s.db, q: tx, tx: true}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return storeErr(err)
	}
	return nil
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %s", errs.ErrStoreUnavailable, err.Error())
}

var _ repository.LedgerStore = (*LedgerStore)(nil)
