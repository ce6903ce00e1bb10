package donation

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"amanahchain/core/types"
)

const (
	EventTypePoolRegistered  = "donation.pool_registered"
	EventTypePoolRetired     = "donation.pool_retired"
	EventTypeDonated         = "donation.received"
	EventTypeWithdrawn       = "donation.withdrawn"
	EventTypeRedemptionDebit = "donation.redemption_debit"
)

// NewPoolRegisteredEvent returns the canonical payload emitted when a pool is
// registered.
func NewPoolRegisteredEvent(p *Pool) *types.Event {
	attrs := make(map[string]string)
	if p != nil {
		attrs["code"] = p.Code
		attrs["handler"] = hex.EncodeToString(p.Handler[:])
		if p.MinCertAmount != nil {
			attrs["minCertAmount"] = p.MinCertAmount.String()
		}
		attrs["createdAt"] = strconv.FormatUint(p.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypePoolRegistered, Attributes: attrs}
}

// NewPoolRetiredEvent returns the payload emitted when a pool is retired.
func NewPoolRetiredEvent(code string) *types.Event {
	return &types.Event{Type: EventTypePoolRetired, Attributes: map[string]string{"code": code}}
}

// NewDonatedEvent returns the canonical payload for a recorded donation.
func NewDonatedEvent(r *Record) *types.Event {
	attrs := make(map[string]string)
	if r != nil {
		attrs["sequence"] = strconv.FormatUint(r.Sequence, 10)
		attrs["donor"] = hex.EncodeToString(r.Donor[:])
		attrs["pool"] = r.PoolCode
		attrs["category"] = r.Category.String()
		if r.Amount != nil {
			attrs["amount"] = r.Amount.String()
		}
		attrs["timestamp"] = strconv.FormatUint(r.Timestamp, 10)
	}
	return &types.Event{Type: EventTypeDonated, Attributes: attrs}
}

// NewWithdrawnEvent returns the payload emitted when a handler draws a pool
// down for fulfillment.
func NewWithdrawnEvent(code string, handler [20]byte, amount, remaining *big.Int) *types.Event {
	attrs := map[string]string{
		"pool":    code,
		"handler": hex.EncodeToString(handler[:]),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if remaining != nil {
		attrs["remaining"] = remaining.String()
	}
	return &types.Event{Type: EventTypeWithdrawn, Attributes: attrs}
}

// NewRedemptionDebitEvent returns the payload emitted when a certificate
// redemption debits the pool ledger.
func NewRedemptionDebitEvent(code string, amount, remaining *big.Int) *types.Event {
	attrs := map[string]string{"pool": code}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	if remaining != nil {
		attrs["remaining"] = remaining.String()
	}
	return &types.Event{Type: EventTypeRedemptionDebit, Attributes: attrs}
}
