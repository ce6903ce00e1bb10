package exchange

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"amanahchain/core/types"
)

const (
	EventTypeOrderPlaced    = "exchange.order_placed"
	EventTypeOrderFilled    = "exchange.order_filled"
	EventTypeOrderCancelled = "exchange.order_cancelled"
)

// NewOrderPlacedEvent returns the canonical payload for a newly escrowed
// order.
func NewOrderPlacedEvent(o *Order) *types.Event {
	return newOrderEvent(EventTypeOrderPlaced, o, nil)
}

// NewOrderFilledEvent returns the payload emitted on each fill, including the
// fill quantity alongside the updated order snapshot.
func NewOrderFilledEvent(o *Order, taker [20]byte, fillAmount, quoteAmount *big.Int) *types.Event {
	evt := newOrderEvent(EventTypeOrderFilled, o, nil)
	evt.Attributes["taker"] = hex.EncodeToString(taker[:])
	if fillAmount != nil {
		evt.Attributes["fillAmount"] = fillAmount.String()
	}
	if quoteAmount != nil {
		evt.Attributes["quoteAmount"] = quoteAmount.String()
	}
	return evt
}

// NewOrderCancelledEvent returns the payload emitted when the maker cancels,
// carrying the escrow amount refunded.
func NewOrderCancelledEvent(o *Order, refunded *big.Int) *types.Event {
	return newOrderEvent(EventTypeOrderCancelled, o, refunded)
}

func newOrderEvent(eventType string, o *Order, refunded *big.Int) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["orderId"] = strconv.FormatUint(o.ID, 10)
		attrs["maker"] = hex.EncodeToString(o.Maker[:])
		attrs["offerToken"] = o.OfferToken
		attrs["requestToken"] = o.RequestToken
		if o.OfferAmount != nil {
			attrs["offerAmount"] = o.OfferAmount.String()
		}
		if o.RequestAmount != nil {
			attrs["requestAmount"] = o.RequestAmount.String()
		}
		if o.Filled != nil {
			attrs["filled"] = o.Filled.String()
		}
		attrs["status"] = o.Status.String()
	}
	if refunded != nil {
		attrs["refunded"] = refunded.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
