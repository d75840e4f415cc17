package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tonic56/stock-trading-simulator/internal/config"
	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/Tonic56/stock-trading-simulator/lib/hashcrypto"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TokenService interface {
	GenerateTokens(ctx context.Context, userID uuid.UUID, username string) (accessToken string, refreshToken string, err error)
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, newRefreshToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

type tokenService struct {
	tokenRepo repository.TokenRepository
	db        *gorm.DB
	cfg       config.TokenConfig
}

func NewTokenService(tokenRepo repository.TokenRepository, db *gorm.DB, cfg config.TokenConfig) TokenService {
	return &tokenService{
		tokenRepo: tokenRepo,
		db:        db,
		cfg:       cfg,
	}
}

func (s *tokenService) GenerateTokens(ctx context.Context, userID uuid.UUID, username string) (string, string, error) {
	return s.generateTokensInTx(ctx, userID, username, s.tokenRepo)
}

// RefreshToken rotates a refresh token: the old session is deleted and a new
// pair issued in the same transaction.
func (s *tokenService) RefreshToken(ctx context.Context, currentRefreshToken string) (string, string, error) {
	var newAccessToken, newRefreshToken string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txTokenRepo := repository.NewTokenRepository(tx)
		txUsersRepo := repository.NewUsersRepository(tx)

		hashedToken := hashcrypto.HashToken(currentRefreshToken)
		session, err := txTokenRepo.GetByRefreshTokenHash(ctx, hashedToken)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				return errs.ErrInvalidToken
			}
			return err
		}

		if time.Now().After(session.ExpiresAt) {
			return errs.ErrInvalidToken
		}

		user, err := txUsersRepo.GetUserByID(ctx, session.UserID)
		if err != nil {
			return fmt.Errorf("session without user: %w", err)
		}

		if err := txTokenRepo.DeleteByRefreshTokenHash(ctx, hashedToken); err != nil {
			return fmt.Errorf("failed to delete old session: %w", err)
		}

		newAccessToken, newRefreshToken, err = s.generateTokensInTx(ctx, user.ID, user.Username, txTokenRepo)
		if err != nil {
			return fmt.Errorf("failed to generate new tokens: %w", err)
		}

		return nil
	})
	if err != nil {
		return "", "", err
	}

	return newAccessToken, newRefreshToken, nil
}

func (s *tokenService) generateTokensInTx(ctx context.Context, userID uuid.UUID, username string, repo repository.TokenRepository) (string, string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"name": username,
		"exp":  now.Add(s.cfg.AccessToken).Unix(),
		"iat":  now.Unix(),
	}

	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedAccessToken, err := accessToken.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", "", fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := hashcrypto.GenerateRandomString(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	session := &models.Session{
		UserID:       userID,
		RefreshToken: hashcrypto.HashToken(refreshToken),
		ExpiresAt:    now.Add(s.cfg.RefreshToken),
	}

	if err := repo.StoreRefreshToken(ctx, session); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token session: %w", err)
	}

	return signedAccessToken, refreshToken, nil
}

// Logout is idempotent: an unknown token is not an error.
func (s *tokenService) Logout(ctx context.Context, refreshToken string) error {
	hashedToken := hashcrypto.HashToken(refreshToken)

	if err := s.tokenRepo.DeleteByRefreshTokenHash(ctx, hashedToken); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}

	return nil
}

func (s *tokenService) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	return s.tokenRepo.DeleteExpiredTokens(ctx, time.Now())
}

func (s *tokenService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	return s.tokenRepo.DeleteAllUserSessions(ctx, userID)
}
