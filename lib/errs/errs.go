package errs

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

var ErrInvalidSymbol = errors.New("invalid symbol")

var ErrInvalidQuantity = errors.New("invalid quantity")

var ErrInvalidAmount = errors.New("invalid amount")

var ErrInsufficientFunds = errors.New("insufficient funds")

var ErrInsufficientShares = errors.New("insufficient shares")

var ErrLookupUnavailable = errors.New("quote lookup unavailable")

var ErrStoreUnavailable = errors.New("store unavailable")

var ErrInvalidCredentials = errors.New("invalid credentials")

var ErrInvalidToken = errors.New("invalid token")

var ErrInvalidInput = errors.New("invalid input")

// InputError is a rejected request field. Msg is safe to show to the user.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// LookupError reports which symbol could not be priced.
type LookupError struct {
	Symbol string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("quote lookup for %s failed: %v", e.Symbol, e.Err)
}

func (e *LookupError) Unwrap() []error {
	return []error{ErrLookupUnavailable, e.Err}
}

// Message returns the text shown to a user for err.
func Message(err error) string {
	var lookupErr *LookupError
	var inputErr *InputError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &inputErr):
		return inputErr.Msg
	case errors.As(err, &lookupErr):
		return fmt.Sprintf("could not fetch a quote for %s, try again later", lookupErr.Symbol)
	case errors.Is(err, ErrLookupUnavailable):
		return "quote service is unavailable, try again later"
	case errors.Is(err, ErrInvalidSymbol):
		return "provide a valid symbol"
	case errors.Is(err, ErrInvalidQuantity):
		return "shares must be a positive whole number"
	case errors.Is(err, ErrInvalidAmount):
		return "amount must be a positive number"
	case errors.Is(err, ErrInsufficientFunds):
		return "you don't have enough cash"
	case errors.Is(err, ErrInsufficientShares):
		return "you don't have this number of shares"
	case errors.Is(err, ErrStoreUnavailable):
		return "storage is unavailable, try again later"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrAlreadyExists):
		return "username already exists"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid username and/or password"
	case errors.Is(err, ErrInvalidToken):
		return "invalid or expired token"
	default:
		return "internal server error"
	}
}
