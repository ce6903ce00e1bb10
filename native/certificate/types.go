package certificate

import (
	"fmt"
	"math/big"
)

// Status represents the redemption state of a certificate. The transition
// Unredeemed -> Redeemed happens exactly once and is irreversible: a redeemed
// certificate represents consumption of a real-world good.
type Status uint8

const (
	StatusUnredeemed Status = iota
	StatusRedeemed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s == StatusUnredeemed || s == StatusRedeemed
}

// String returns the canonical name for the status.
func (s Status) String() string {
	switch s {
	case StatusUnredeemed:
		return "UNREDEEMED"
	case StatusRedeemed:
		return "REDEEMED"
	default:
		return fmt.Sprintf("STATUS(%d)", uint8(s))
	}
}

// Certificate is a non-fungible, one-time-use claim against a pool's balance.
// Face value and pool binding are fixed at mint time.
type Certificate struct {
	TokenID    uint64
	Owner      [20]byte
	PoolCode   string
	FaceValue  *big.Int
	Status     Status
	MintedAt   uint64
	RedeemedAt uint64
}

// Clone returns a deep copy of the certificate so callers can safely mutate
// the copy without affecting the stored instance.
func (c *Certificate) Clone() *Certificate {
	if c == nil {
		return nil
	}
	clone := *c
	if c.FaceValue != nil {
		clone.FaceValue = new(big.Int).Set(c.FaceValue)
	} else {
		clone.FaceValue = big.NewInt(0)
	}
	return &clone
}

// SanitizeCertificate validates the supplied certificate, returning a cloned
// instance with a non-nil face value. The function does not mutate the
// original value.
func SanitizeCertificate(c *Certificate) (*Certificate, error) {
	if c == nil {
		return nil, fmt.Errorf("certificate: nil certificate")
	}
	clone := c.Clone()
	if clone.PoolCode == "" {
		return nil, fmt.Errorf("certificate: pool code must not be empty")
	}
	if clone.FaceValue.Sign() <= 0 {
		return nil, fmt.Errorf("certificate: face value must be positive")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("certificate: invalid status %d", clone.Status)
	}
	return clone, nil
}
