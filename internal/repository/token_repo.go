package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenRepository interface {
	StoreRefreshToken(ctx context.Context, session *models.Session) error
	GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByRefreshTokenHash(ctx context.Context, tokenHash string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{
		db: db,
	}
}

func (db *tokenRepository) StoreRefreshToken(ctx context.Context, session *models.Session) error {
	if err := db.db.WithContext(ctx).Create(session).Error; err != nil {
		return storeErr(err)
	}

	return nil
}

func (db *tokenRepository) GetByRefreshTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	var session models.Session

	if err := db.db.WithContext(ctx).Where("refresh_token = ?", tokenHash).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, storeErr(err)
	}

	return &session, nil
}

func (db *tokenRepository) DeleteByRefreshTokenHash(ctx context.Context, tokenHash string) error {
	result := db.db.WithContext(ctx).Where("refresh_token = ?", tokenHash).Delete(&models.Session{})

	if err := result.Error; err != nil {
		return storeErr(err)
	}

	if result.RowsAffected == 0 {
		return errs.ErrNotFound
	}

	return nil
}

func (db *tokenRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	result := db.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.Session{})
	if result.Error != nil {
		return 0, storeErr(result.Error)
	}
	return result.RowsAffected, nil
}

func (db *tokenRepository) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	result := db.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Session{})
	if result.Error != nil {
		return storeErr(result.Error)
	}
	return nil
}
