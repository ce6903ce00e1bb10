package certificate

import "errors"

var (
	ErrUnauthorized      = errors.New("certificate: unauthorized")
	ErrUnknownToken      = errors.New("certificate: unknown token")
	ErrUnknownPool       = errors.New("certificate: unknown pool")
	ErrAlreadyRedeemed   = errors.New("certificate: already redeemed")
	ErrInsufficientFunds = errors.New("certificate: insufficient pool funds")
)
