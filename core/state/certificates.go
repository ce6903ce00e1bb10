package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"amanahchain/native/certificate"
)

// CertificatePut stores the sanitized certificate and indexes it by owner.
// Ownership indexes are append-only; readers filter out entries whose stored
// owner has since changed.
func (m *Manager) CertificatePut(c *certificate.Certificate) error {
	sanitized, err := certificate.SanitizeCertificate(c)
	if err != nil {
		return err
	}
	encoded, err := rlp.EncodeToBytes(sanitized)
	if err != nil {
		return err
	}
	if err := m.db.Put(certificateKey(sanitized.TokenID), encoded); err != nil {
		return err
	}
	return m.appendToList(certificateOwnerIndexKey(sanitized.Owner[:]), uint64Bytes(sanitized.TokenID))
}

// CertificateGet retrieves a certificate by token id. The returned value is a
// private copy the caller may mutate.
func (m *Manager) CertificateGet(id uint64) (*certificate.Certificate, bool) {
	data, err := m.db.Get(certificateKey(id))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	cert := new(certificate.Certificate)
	if err := rlp.DecodeBytes(data, cert); err != nil {
		return nil, false
	}
	return cert, true
}

// CertificatesByOwner returns the token ids ever indexed under the owner,
// oldest first. Entries transferred away are filtered by the caller against
// the stored owner.
func (m *Manager) CertificatesByOwner(owner []byte) ([]uint64, error) {
	return m.readSeqList(certificateOwnerIndexKey(owner))
}

// NextCertificateID allocates the next monotonically increasing token id,
// starting at 1.
func (m *Manager) NextCertificateID() (uint64, error) {
	count, err := m.loadCounter(certCountKey)
	if err != nil {
		return 0, err
	}
	count++
	if err := m.writeCounter(certCountKey, count); err != nil {
		return 0, err
	}
	return count, nil
}

// CertificateCount returns the highest allocated token id.
func (m *Manager) CertificateCount() (uint64, error) {
	return m.loadCounter(certCountKey)
}
