package certificate

import (
	"encoding/hex"
	"strconv"

	"amanahchain/core/types"
)

const (
	EventTypeMinted      = "certificate.minted"
	EventTypeRedeemed    = "certificate.redeemed"
	EventTypeTransferred = "certificate.transferred"
)

// NewMintedEvent returns the canonical payload for a freshly minted
// certificate.
func NewMintedEvent(c *Certificate) *types.Event {
	return newCertificateEvent(EventTypeMinted, c)
}

// NewRedeemedEvent returns the payload emitted when a certificate is redeemed.
// Downstream fulfillment (e.g. releasing food parcels) consumes this record.
func NewRedeemedEvent(c *Certificate) *types.Event {
	return newCertificateEvent(EventTypeRedeemed, c)
}

// NewTransferredEvent returns the payload emitted on an ownership transfer,
// including the previous owner.
func NewTransferredEvent(c *Certificate, previous [20]byte) *types.Event {
	evt := newCertificateEvent(EventTypeTransferred, c)
	evt.Attributes["previousOwner"] = hex.EncodeToString(previous[:])
	return evt
}

func newCertificateEvent(eventType string, c *Certificate) *types.Event {
	attrs := make(map[string]string)
	if c != nil {
		attrs["tokenId"] = strconv.FormatUint(c.TokenID, 10)
		attrs["owner"] = hex.EncodeToString(c.Owner[:])
		attrs["pool"] = c.PoolCode
		if c.FaceValue != nil {
			attrs["faceValue"] = c.FaceValue.String()
		}
		attrs["status"] = c.Status.String()
		attrs["mintedAt"] = strconv.FormatUint(c.MintedAt, 10)
		if c.RedeemedAt != 0 {
			attrs["redeemedAt"] = strconv.FormatUint(c.RedeemedAt, 10)
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
