package sqldb_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/Tonic56/stock-trading-simulator/storage/postgres"
	"github.com/Tonic56/stock-trading-simulator/storage/sqldb"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupStore(t *testing.T) (*sqldb.LedgerStore, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := postgres.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	return sqldb.NewLedgerStore(sqlx.NewDb(sqlDB, "sqlite3")), gdb
}

func seedUser(t *testing.T, gdb *gorm.DB, cash int64) uuid.UUID {
	t.Helper()

	user := &models.User{Username: uuid.NewString(), PasswordHash: "hash", Cash: decimal.NewFromInt(cash)}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user.ID
}

func TestLedgerStore(t *testing.T) {
	store, gdb := setupStore(t)
	ctx := context.Background()
	userID := seedUser(t, gdb, 10000)

	cash, err := store.AdjustCash(ctx, userID, decimal.NewFromInt(-1000))
	if err != nil {
		t.Fatalf("AdjustCash failed: %v", err)
	}
	if !cash.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("expected cash 9000, got %s", cash)
	}

	if _, err := store.AdjustCash(ctx, userID, decimal.NewFromInt(-9001)); !errors.Is(err, errs.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}

	first := &models.LedgerEntry{UserID: userID, Symbol: "AAA", Shares: 10, Price: decimal.NewFromInt(100), TransactedAt: time.Now().UTC()}
	second := &models.LedgerEntry{UserID: userID, Symbol: "AAA", Shares: -4, Price: decimal.NewFromInt(150), TransactedAt: time.Now().UTC()}
	for _, e := range []*models.LedgerEntry{first, second} {
		if err := store.AppendLedgerEntry(ctx, e); err != nil {
			t.Fatalf("AppendLedgerEntry failed: %v", err)
		}
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Errorf("expected increasing ids, got %d and %d", first.ID, second.ID)
	}

	entries, err := store.ListLedgerEntries(ctx, userID)
	if err != nil {
		t.Fatalf("ListLedgerEntries failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Shares != 10 || entries[1].Shares != -4 {
		t.Errorf("unexpected shares order: %d, %d", entries[0].Shares, entries[1].Shares)
	}
	if entries[1].UserID != userID || !entries[1].Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("unexpected entry: %+v", entries[1])
	}
}

func TestLedgerStoreWithinTxRollsBack(t *testing.T) {
	store, gdb := setupStore(t)
	ctx := context.Background()
	userID := seedUser(t, gdb, 500)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.GetCash(ctx, userID); err != nil {
			return err
		}
		if _, err := tx.AdjustCash(ctx, userID, decimal.NewFromInt(-200)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	cash, err := store.GetCash(ctx, userID)
	if err != nil {
		t.Fatalf("GetCash failed: %v", err)
	}
	if !cash.Equal(decimal.NewFromInt(500)) {
		t.Errorf("expected cash 500 after rollback, got %s", cash)
	}

	if _, err := store.GetCash(ctx, uuid.New()); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
