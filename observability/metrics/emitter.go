package metrics

import (
	coreevents "amanahchain/core/events"
	"amanahchain/core/types"
	"amanahchain/native/certificate"
	"amanahchain/native/donation"
	"amanahchain/native/exchange"
)

type payloadCarrier interface {
	Event() *types.Event
}

// Emitter translates engine events into prometheus counter updates. It is
// meant to sit alongside other sinks in an events.MultiEmitter.
type Emitter struct {
	ledger *LedgerMetrics
}

// NewEmitter returns a metrics emitter bound to the process-wide registry.
func NewEmitter() *Emitter {
	return &Emitter{ledger: Ledger()}
}

// Emit implements the events.Emitter interface.
func (e *Emitter) Emit(evt coreevents.Event) {
	if e == nil || evt == nil {
		return
	}
	switch evt.EventType() {
	case donation.EventTypeDonated:
		category := ""
		if carrier, ok := evt.(payloadCarrier); ok {
			if payload := carrier.Event(); payload != nil {
				category = payload.Attributes["category"]
			}
		}
		e.ledger.RecordDonation(category)
	case donation.EventTypeWithdrawn:
		e.ledger.RecordWithdrawal()
	case exchange.EventTypeOrderPlaced:
		e.ledger.RecordOrderPlaced()
	case exchange.EventTypeOrderFilled:
		final := false
		if carrier, ok := evt.(payloadCarrier); ok {
			if payload := carrier.Event(); payload != nil {
				final = payload.Attributes["status"] == exchange.OrderFilled.String()
			}
		}
		e.ledger.RecordOrderFill(final)
	case exchange.EventTypeOrderCancelled:
		e.ledger.RecordOrderCancelled()
	case certificate.EventTypeMinted:
		e.ledger.RecordCertificateMinted()
	case certificate.EventTypeRedeemed:
		e.ledger.RecordCertificateRedeemed()
	case certificate.EventTypeTransferred:
		e.ledger.RecordCertificateTransferred()
	}
}
