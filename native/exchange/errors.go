package exchange

import "errors"

var (
	ErrUnauthorized      = errors.New("exchange: unauthorized")
	ErrUnknownOrder      = errors.New("exchange: unknown order")
	ErrOrderNotOpen      = errors.New("exchange: order not open")
	ErrExceedsRemaining  = errors.New("exchange: fill exceeds remaining quantity")
	ErrInvalidAmount     = errors.New("exchange: amount must be positive")
	ErrSelfFill          = errors.New("exchange: maker cannot fill own order")
	ErrInsufficientFunds = errors.New("exchange: insufficient funds")
)
