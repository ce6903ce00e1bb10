package exchange

import (
	"fmt"
	"math/big"
	"strings"
)

// OrderStatus represents the lifecycle states of a peer-to-peer order.
type OrderStatus uint8

const (
	OrderOpen OrderStatus = iota
	OrderPartiallyFilled
	OrderFilled
	OrderCancelled
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderPartiallyFilled, OrderFilled, OrderCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final. Terminal orders hold no
// escrow: every escrowed unit has been released to takers or refunded to the
// maker before the transition.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

// String returns the canonical name for the status.
func (s OrderStatus) String() string {
	switch s {
	case OrderOpen:
		return "OPEN"
	case OrderPartiallyFilled:
		return "PARTIALLY_FILLED"
	case OrderFilled:
		return "FILLED"
	case OrderCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Order captures a maker's escrowed offer. The price is implicit in the
// RequestAmount/OfferAmount ratio and fixed at creation.
type Order struct {
	ID            uint64
	Maker         [20]byte
	OfferToken    string
	OfferAmount   *big.Int
	RequestToken  string
	RequestAmount *big.Int
	Filled        *big.Int
	Status        OrderStatus
	CreatedAt     uint64
}

// Clone returns a deep copy of the order so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	clone.OfferAmount = cloneAmount(o.OfferAmount)
	clone.RequestAmount = cloneAmount(o.RequestAmount)
	clone.Filled = cloneAmount(o.Filled)
	return &clone
}

// Remaining returns the unfilled portion of the offer.
func (o *Order) Remaining() *big.Int {
	if o == nil || o.OfferAmount == nil {
		return big.NewInt(0)
	}
	remaining := new(big.Int).Set(o.OfferAmount)
	if o.Filled != nil {
		remaining.Sub(remaining, o.Filled)
	}
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// SanitizeOrder validates and normalises the supplied order, returning a
// cloned instance with canonical token casing and non-nil amount fields. The
// function does not mutate the original value.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("exchange: nil order")
	}
	clone := o.Clone()
	clone.OfferToken = strings.ToUpper(strings.TrimSpace(clone.OfferToken))
	clone.RequestToken = strings.ToUpper(strings.TrimSpace(clone.RequestToken))
	if clone.OfferToken == "" || clone.RequestToken == "" {
		return nil, fmt.Errorf("exchange: token symbols must not be empty")
	}
	if clone.OfferToken == clone.RequestToken {
		return nil, fmt.Errorf("exchange: offer and request tokens must differ")
	}
	if clone.OfferAmount.Sign() <= 0 {
		return nil, fmt.Errorf("exchange: offer amount must be positive")
	}
	if clone.RequestAmount.Sign() <= 0 {
		return nil, fmt.Errorf("exchange: request amount must be positive")
	}
	if clone.Filled.Sign() < 0 {
		return nil, fmt.Errorf("exchange: filled amount must be non-negative")
	}
	if clone.Filled.Cmp(clone.OfferAmount) > 0 {
		return nil, fmt.Errorf("exchange: filled amount exceeds offer")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("exchange: invalid status %d", clone.Status)
	}
	return clone, nil
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
