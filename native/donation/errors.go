package donation

import "errors"

var (
	ErrUnauthorized      = errors.New("donation: unauthorized")
	ErrDuplicatePool     = errors.New("donation: pool already registered")
	ErrUnknownPool       = errors.New("donation: unknown pool")
	ErrPoolRetired       = errors.New("donation: pool retired")
	ErrInvalidCategory   = errors.New("donation: invalid category")
	ErrInvalidAmount     = errors.New("donation: amount must be positive")
	ErrInsufficientFunds = errors.New("donation: insufficient funds")
)
