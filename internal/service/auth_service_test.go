package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/config"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/internal/service"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/Tonic56/stock-trading-simulator/lib/hashcrypto"
	"github.com/Tonic56/stock-trading-simulator/storage/postgres"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return db
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(db), decimal.NewFromInt(10000))

	user, err := auth.Register(ctx, "  alice ", "secret", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, decimal.NewFromInt(10000).Equal(user.Cash))
	assert.NotEqual(t, "secret", user.PasswordHash)

	_, err = auth.Register(ctx, "alice", "other", "other")
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)

	tests := []struct {
		name, username, password, confirmation, msg string
	}{
		{name: "no username", username: " ", password: "p", confirmation: "p", msg: "must provide username"},
		{name: "password too long", username: "bob", password: strings.Repeat("x", 80), confirmation: strings.Repeat("x", 80), msg: "password must be at most 72 bytes"},
		{name: "no password", username: "bob", password: "", confirmation: "", msg: "must provide password"},
		{name: "mismatch", username: "bob", password: "p", confirmation: "q", msg: "passwords must match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.username, tt.password, tt.confirmation)
			assert.ErrorIs(t, err, errs.ErrInvalidInput)
			assert.Equal(t, tt.msg, errs.Message(err))
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(db), decimal.NewFromInt(10000))

	registered, err := auth.Register(ctx, "alice", "secret", "secret")
	require.NoError(t, err)

	user, err := auth.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = auth.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)

	_, err = auth.Login(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, errs.ErrInvalidCredentials)
}

func newTokenService(db *gorm.DB) service.TokenService {
	cfg := config.TokenConfig{
		Secret:       "test-secret",
		AccessToken:  time.Minute,
		RefreshToken: time.Hour,
	}
	return service.NewTokenService(repository.NewTokenRepository(db), db, cfg)
}

func TestGenerateTokens(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(db), decimal.NewFromInt(10000))
	tokens := newTokenService(db)

	user, err := auth.Register(ctx, "alice", "secret", "secret")
	require.NoError(t, err)

	access, refresh, err := tokens.GenerateTokens(ctx, user.ID, user.Username)
	require.NoError(t, err)
	require.NotEmpty(t, refresh)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(access, claims, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, "alice", claims["name"])

	var session models.Session
	require.NoError(t, db.First(&session, "refresh_token = ?", hashcrypto.HashToken(refresh)).Error)
	assert.Equal(t, user.ID, session.UserID)
}

func TestRefreshTokenRotates(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(db), decimal.NewFromInt(10000))
	tokens := newTokenService(db)

	user, err := auth.Register(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	_, refresh, err := tokens.GenerateTokens(ctx, user.ID, user.Username)
	require.NoError(t, err)

	access, newRefresh, err := tokens.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEqual(t, refresh, newRefresh)

	_, _, err = tokens.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, errs.ErrInvalidToken, "old refresh token must be single use")

	_, _, err = tokens.RefreshToken(ctx, "garbage")
	assert.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestLogoutAndCleanup(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	auth := service.NewAuthService(repository.NewUsersRepository(db), decimal.NewFromInt(10000))
	tokens := newTokenService(db)

	user, err := auth.Register(ctx, "alice", "secret", "secret")
	require.NoError(t, err)
	_, refresh, err := tokens.GenerateTokens(ctx, user.ID, user.Username)
	require.NoError(t, err)

	require.NoError(t, tokens.Logout(ctx, refresh))
	require.NoError(t, tokens.Logout(ctx, refresh), "logout is idempotent")

	_, _, err = tokens.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, errs.ErrInvalidToken)

	expired := &models.Session{UserID: user.ID, RefreshToken: "expired-hash", ExpiresAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(expired).Error)

	deleted, err := tokens.DeleteExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, first, err := tokens.GenerateTokens(ctx, user.ID, user.Username)
	require.NoError(t, err)
	_, second, err := tokens.GenerateTokens(ctx, user.ID, user.Username)
	require.NoError(t, err)

	require.NoError(t, tokens.DeleteAllUserSessions(ctx, user.ID))
	for _, refresh := range []string{first, second} {
		_, _, err = tokens.RefreshToken(ctx, refresh)
		assert.ErrorIs(t, err, errs.ErrInvalidToken)
	}
}
