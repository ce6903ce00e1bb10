package state

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"amanahchain/native/donation"
)

// PoolPut stores the sanitized pool record and tracks its code in the pool
// index.
func (m *Manager) PoolPut(p *donation.Pool) error {
	sanitized, err := donation.SanitizePool(p)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	if err := m.db.Put(poolKey(sanitized.Code), encoded); err != nil {
		return err
	}
	return m.appendToList(poolListKey, []byte(sanitized.Code))
}

// PoolGet retrieves a pool by its canonical code. The returned pool is a
// private copy the caller may mutate.
func (m *Manager) PoolGet(code string) (*donation.Pool, bool) {
	data, err := m.db.Get(poolKey(code))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	pool := new(donation.Pool)
	if err := rlp.DecodeBytes(data, pool); err != nil {
		return nil, false
	}
	return pool, true
}

// PoolList returns the codes of every registered pool in registration order.
func (m *Manager) PoolList() ([]string, error) {
	entries, err := m.readList(poolListKey)
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		codes = append(codes, string(entry))
	}
	return codes, nil
}

// DonationAppend writes the record under the next sequence number and indexes
// it by donor and pool. Records are append-only; no update or delete path
// exists.
func (m *Manager) DonationAppend(r *donation.Record) (uint64, error) {
	if r == nil {
		return 0, fmt.Errorf("state: nil donation record")
	}
	seq, err := m.loadCounter(recordSeqKey)
	if err != nil {
		return 0, err
	}
	seq++
	stored := r.Clone()
	stored.Sequence = seq
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return 0, err
	}
	if err := m.db.Put(recordKey(seq), encoded); err != nil {
		return 0, err
	}
	if err := m.writeCounter(recordSeqKey, seq); err != nil {
		return 0, err
	}
	if err := m.appendToList(donorIndexKey(stored.Donor[:]), uint64Bytes(seq)); err != nil {
		return 0, err
	}
	if err := m.appendToList(poolRecordIndexKey(stored.PoolCode), uint64Bytes(seq)); err != nil {
		return 0, err
	}
	return seq, nil
}

// DonationGet retrieves a donation record by sequence number.
func (m *Manager) DonationGet(seq uint64) (*donation.Record, bool) {
	data, err := m.db.Get(recordKey(seq))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	record := new(donation.Record)
	if err := rlp.DecodeBytes(data, record); err != nil {
		return nil, false
	}
	return record, true
}

// DonationCount returns the highest assigned donation sequence number.
func (m *Manager) DonationCount() (uint64, error) {
	return m.loadCounter(recordSeqKey)
}

// DonationsByDonor returns the sequence numbers of all donations made by the
// address, oldest first.
func (m *Manager) DonationsByDonor(donor []byte) ([]uint64, error) {
	return m.readSeqList(donorIndexKey(donor))
}

// DonationsByPool returns the sequence numbers of all donations into the pool,
// oldest first.
func (m *Manager) DonationsByPool(code string) ([]uint64, error) {
	return m.readSeqList(poolRecordIndexKey(code))
}

func (m *Manager) appendToList(key []byte, value []byte) error {
	data, err := m.db.Get(key)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) readList(key []byte) ([][]byte, error) {
	data, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return [][]byte{}, nil
	}
	var list [][]byte
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) readSeqList(key []byte) ([]uint64, error) {
	entries, err := m.readList(key)
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		var v uint64
		for _, b := range entry {
			v = v<<8 | uint64(b)
		}
		seqs = append(seqs, v)
	}
	return seqs, nil
}
