package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Tonic56/stock-trading-simulator/internal/models"
	"github.com/Tonic56/stock-trading-simulator/internal/repository"
	"github.com/Tonic56/stock-trading-simulator/lib/errs"
	"github.com/Tonic56/stock-trading-simulator/lib/hashcrypto"
	"github.com/shopspring/decimal"
)

type AuthService interface {
	Register(ctx context.Context, username, password, confirmation string) (*models.User, error)
	Login(ctx context.Context, username, password string) (*models.User, error)
}

type authService struct {
	usersRepo    repository.UsersRepository
	startingCash decimal.Decimal
}

func NewAuthService(usersRepo repository.UsersRepository, startingCash decimal.Decimal) AuthService {
	return &authService{
		usersRepo:    usersRepo,
		startingCash: startingCash,
	}
}

func (s *authService) Register(ctx context.Context, username, password, confirmation string) (*models.User, error) {
	username = strings.TrimSpace(username)

	switch {
	case username == "":
		return nil, &errs.InputError{Msg: "must provide username"}
	case password == "":
		return nil, &errs.InputError{Msg: "must provide password"}
	case len(password) > hashcrypto.MaxPasswordLen:
		return nil, &errs.InputError{Msg: fmt.Sprintf("password must be at most %d bytes", hashcrypto.MaxPasswordLen)}
	case password != confirmation:
		return nil, &errs.InputError{Msg: "passwords must match"}
	}

	_, err := s.usersRepo.GetUserByName(ctx, username)
	if err == nil {
		return nil, errs.ErrAlreadyExists
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	hashedPassword, err := hashcrypto.HashPwd([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hashedPassword),
		Cash:         s.startingCash,
	}
	if err := s.usersRepo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *authService) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, &errs.InputError{Msg: "must provide username"}
	}
	if password == "" {
		return nil, &errs.InputError{Msg: "must provide password"}
	}

	user, err := s.usersRepo.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := hashcrypto.ComparePwd([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errs.ErrInvalidCredentials
	}

	return user, nil
}
