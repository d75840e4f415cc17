package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Tonic56/stock-trading-simulator/internal/config"
	"github.com/Tonic56/stock-trading-simulator/internal/events"
	"github.com/Tonic56/stock-trading-simulator/internal/events/kafka"
	"github.com/Tonic56/stock-trading-simulator/internal/quote"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/internal/service"
	"github.com/Tonic56/stock-trading-simulator/storage/postgres"
	"github.com/Tonic56/stock-trading-simulator/storage/redis"
	"github.com/Tonic56/stock-trading-simulator/storage/sqldb"
	"github.com/jmoiron/sqlx"
)

const (
	BackendGorm = "gorm"
	BackendSQLX = "sqlx"
)

// Services is everything below the transport layer. Both the HTTP service
// and tradectl build one.
type Services struct {
	Trading service.TradingService
	Auth    service.AuthService
	Tokens  service.TokenService
	Users   repository.UsersRepository

	storage    *postgres.Storage
	sqlxDB     *sqlx.DB
	quoteCache *redis.QuoteCache
	publisher  events.Publisher
	log        *slog.Logger
}

func NewServices(ctx context.Context, log *slog.Logger, cfg *config.Config) (*Services, error) {
	const op = "app.NewServices"

	startingCash, err := cfg.Trading.StartingBalance()
	if err != nil {
		return nil, fmt.Errorf("%s: invalid STARTING_CASH %q: %w", op, cfg.Trading.StartingCash, err)
	}

	st, err := postgres.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to init storage: %w", op, err)
	}

	s := &Services{storage: st, log: log}

	ledger, err := s.ledgerStore(cfg.Database)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var provider quote.Provider = quote.NewClient(cfg.Quote.BaseURL, cfg.Quote.APIKey, cfg.Quote.Timeout, log)
	if cfg.Redis.Addr != "" {
		cache, err := redis.New(ctx, cfg.Redis, log)
		if err != nil {
			log.Warn("quote cache disabled", slog.Any("error", err))
		} else {
			s.quoteCache = cache
			provider = quote.NewCached(provider, cache, cfg.Redis.QuoteTTL, log)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		s.publisher = kafka.NewPublisher(cfg.Kafka)
		log.Info("publishing trade events", slog.String("topic", cfg.Kafka.Topic))
	} else {
		s.publisher = events.Noop{}
	}

	s.Users = repository.NewUsersRepository(st.DB)
	s.Trading = service.NewTradingService(ledger, provider, s.publisher, log)
	s.Auth = service.NewAuthService(s.Users, startingCash)
	s.Tokens = service.NewTokenService(repository.NewTokenRepository(st.DB), st.DB, cfg.Token)

	return s, nil
}

func (s *Services) ledgerStore(cfg config.DBConfig) (repository.LedgerStore, error) {
	switch cfg.LedgerBackend {
	case BackendGorm, "":
		return repository.NewLedgerStore(s.storage.DB), nil
	case BackendSQLX:
		if cfg.Driver == postgres.DriverSQLite {
			// share gorm's connection pool, sqlite allows a single writer
			sqlDB, err := s.storage.DB.DB()
			if err != nil {
				return nil, err
			}
			return sqldb.NewLedgerStore(sqlx.NewDb(sqlDB, "sqlite3")), nil
		}

		db, err := sqldb.Connect("postgres", postgres.DSN(cfg))
		if err != nil {
			return nil, err
		}
		s.sqlxDB = db
		return sqldb.NewLedgerStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported LEDGER_BACKEND %q", cfg.LedgerBackend)
	}
}

func (s *Services) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.log.Error("failed to close trade publisher", "error", err)
		}
	}

	if s.quoteCache != nil {
		s.quoteCache.Close()
	}

	if s.sqlxDB != nil {
		if err := s.sqlxDB.Close(); err != nil {
			s.log.Error("failed to close sqlx connection", "error", err)
		}
	}

	if s.storage == nil {
		return
	}
	if err := s.storage.Stop(); err != nil {
		s.log.Error("failed to stop storage", "error", err)
	} else {
		s.log.Info("database connection closed")
	}
}
