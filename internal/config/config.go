package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env       string `env:"ENV" env-default:"local"`
	HTTP      HTTPConfig
	Database  DBConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Quote     QuoteConfig
	Token     TokenConfig
	Trading   TradingConfig
	WebSocket WSConfig
}

type HTTPConfig struct {
	Port    uint16        `env:"HTTP_PORT" env-default:"8080"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" env-default:"30s"`
}

// DBConfig selects the SQL engine (postgres or sqlite) and the ledger
// backend (gorm or sqlx). Both backends share the gorm-migrated schema.
type DBConfig struct {
	Driver        string `env:"DB_DRIVER" env-default:"postgres"`
	LedgerBackend string `env:"LEDGER_BACKEND" env-default:"gorm"`
	SQLitePath    string `env:"SQLITE_PATH" env-default:"finance.db"`
	Host          string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port          uint16 `env:"POSTGRES_PORT" env-default:"5432"`
	User          string `env:"POSTGRES_USER" env-default:"postgres"`
	Password      string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DBName        string `env:"POSTGRES_DB" env-default:"finance"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	QuoteTTL time.Duration `env:"QUOTE_CACHE_TTL" env-default:"15s"`
}

type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" env-separator:","`
	Topic        string        `env:"KAFKA_TOPIC" env-default:"trades.executed"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" env-default:"50ms"`
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" env-default:"10s"`
	RequiredAcks int           `env:"KAFKA_ACKS" env-default:"1"`
	MaxAttempts  int           `env:"KAFKA_MAX_ATTEMPTS" env-default:"3"`
}

type QuoteConfig struct {
	APIKey  string        `env:"API_KEY" env-required:"true"`
	BaseURL string        `env:"QUOTE_BASE_URL" env-default:"https://cloud.iexapis.com/stable"`
	Timeout time.Duration `env:"QUOTE_TIMEOUT" env-default:"10s"`
}

type TokenConfig struct {
	Secret               string        `env:"JWT_SECRET" env-required:"true"`
	AccessToken          time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshToken         time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	TokenCleanupInterval time.Duration `env:"TOKEN_CLEANUP_INTERVAL" env-default:"1h"`
}

type TradingConfig struct {
	StartingCash string `env:"STARTING_CASH" env-default:"10000"`
}

func (c TradingConfig) StartingBalance() (decimal.Decimal, error) {
	return decimal.NewFromString(c.StartingCash)
}

type WSConfig struct {
	PushInterval time.Duration `env:"WS_PUSH_INTERVAL" env-default:"30s"`
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Error("failed to read environment variables", "error", err)
		os.Exit(1)
	}

	return cfg
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment variables")
	}

	var cfg Config

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
