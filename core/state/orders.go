package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"amanahchain/native/exchange"
)

// OrderPut stores the sanitized order under its identifier.
func (m *Manager) OrderPut(o *exchange.Order) error {
	sanitized, err := exchange.SanitizeOrder(o)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	return m.db.Put(orderKey(sanitized.ID), encoded)
}

// OrderGet retrieves an order by identifier. The returned order is a private
// copy the caller may mutate.
func (m *Manager) OrderGet(id uint64) (*exchange.Order, bool) {
	data, err := m.db.Get(orderKey(id))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	order := new(exchange.Order)
	if err := rlp.DecodeBytes(data, order); err != nil {
		return nil, false
	}
	return order, true
}

// NextOrderID allocates the next monotonically increasing order identifier,
// starting at 1.
func (m *Manager) NextOrderID() (uint64, error) {
	count, err := m.loadCounter(orderCountKey)
	if err != nil {
		return 0, err
	}
	count++
	if err := m.writeCounter(orderCountKey, count); err != nil {
		return 0, err
	}
	return count, nil
}

// OrderCount returns the highest allocated order identifier.
func (m *Manager) OrderCount() (uint64, error) {
	return m.loadCounter(orderCountKey)
}
