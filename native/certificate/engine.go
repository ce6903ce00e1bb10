package certificate

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"amanahchain/core/events"
	"amanahchain/core/types"
	nativecommon "amanahchain/native/common"
	"amanahchain/native/donation"
)

// ModuleName identifies the certificate issuer for pause control.
const ModuleName = "certificate"

var (
	errNilState  = errors.New("certificate engine: state not configured")
	errNilLedger = errors.New("certificate engine: pool ledger not configured")
)

type engineState interface {
	CertificatePut(*Certificate) error
	CertificateGet(id uint64) (*Certificate, bool)
	CertificatesByOwner(owner []byte) ([]uint64, error)
	NextCertificateID() (uint64, error)
	HasRole(role string, addr []byte) bool
	ModuleVaultAddress(module string) [20]byte
}

// PoolLedger is the slice of the donation ledger the issuer depends on:
// existence checks, balance reads and the redemption debit, which is the only
// pool-decreasing path outside handler withdrawals.
type PoolLedger interface {
	PoolExists(code string) bool
	PoolTotal(code string) (*big.Int, error)
	DebitForRedemption(code string, amount *big.Int) error
}

type certificateEvent struct {
	evt *types.Event
}

func (e certificateEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e certificateEvent) Event() *types.Event { return e.evt }

// Engine mints and tracks redemption certificates. Minting is restricted to
// the donation ledger (for qualifying donations) and pool administrators (for
// manual issuance); redemption debits the bound pool exactly once.
type Engine struct {
	state   engineState
	ledger  PoolLedger
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates a certificate engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPoolLedger wires the donation ledger consumed on mint and redeem.
func (e *Engine) SetPoolLedger(ledger PoolLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source, primarily used in tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(certificateEvent{evt: evt})
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// Mint issues a certificate bound to the pool with the given face value. The
// caller must be the donation module's vault address (automatic issuance on a
// qualifying donation) or hold ROLE_POOL_ADMIN (manual issuance). The new
// token id is returned.
func (e *Engine) Mint(caller [20]byte, owner [20]byte, poolCode string, faceValue *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.ledger == nil {
		return 0, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	ledgerAddr := e.state.ModuleVaultAddress(donation.ModuleName)
	if caller != ledgerAddr && !e.state.HasRole(donation.RolePoolAdmin, caller[:]) {
		return 0, ErrUnauthorized
	}
	normalized, err := donation.NormalizePoolCode(poolCode)
	if err != nil {
		return 0, err
	}
	if !e.ledger.PoolExists(normalized) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPool, normalized)
	}
	cert, err := SanitizeCertificate(&Certificate{
		Owner:     owner,
		PoolCode:  normalized,
		FaceValue: faceValue,
		Status:    StatusUnredeemed,
		MintedAt:  e.now(),
	})
	if err != nil {
		return 0, err
	}
	id, err := e.state.NextCertificateID()
	if err != nil {
		return 0, err
	}
	cert.TokenID = id
	if err := e.state.CertificatePut(cert); err != nil {
		return 0, err
	}
	e.emit(NewMintedEvent(cert))
	return id, nil
}

// Redeem consumes the certificate: it debits the bound pool by the face value
// and marks the certificate redeemed, irrevocably. Only the current owner may
// redeem, and only once.
func (e *Engine) Redeem(caller [20]byte, tokenID uint64) (*Certificate, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.ledger == nil {
		return nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	cert, err := e.loadCertificate(tokenID)
	if err != nil {
		return nil, err
	}
	if caller != cert.Owner {
		return nil, ErrUnauthorized
	}
	if cert.Status == StatusRedeemed {
		return nil, fmt.Errorf("%w: token %d", ErrAlreadyRedeemed, tokenID)
	}
	total, err := e.ledger.PoolTotal(cert.PoolCode)
	if err != nil {
		return nil, err
	}
	if total.Cmp(cert.FaceValue) < 0 {
		return nil, fmt.Errorf("%w: pool %s holds %s, face value %s", ErrInsufficientFunds, cert.PoolCode, total, cert.FaceValue)
	}
	if err := e.ledger.DebitForRedemption(cert.PoolCode, cert.FaceValue); err != nil {
		return nil, err
	}
	cert.Status = StatusRedeemed
	cert.RedeemedAt = e.now()
	if err := e.state.CertificatePut(cert); err != nil {
		return nil, err
	}
	e.emit(NewRedeemedEvent(cert))
	return cert.Clone(), nil
}

// Transfer reassigns ownership of an unredeemed certificate. Redeemed
// certificates are non-transferable.
func (e *Engine) Transfer(caller [20]byte, tokenID uint64, newOwner [20]byte) (*Certificate, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	cert, err := e.loadCertificate(tokenID)
	if err != nil {
		return nil, err
	}
	if caller != cert.Owner {
		return nil, ErrUnauthorized
	}
	if cert.Status == StatusRedeemed {
		return nil, fmt.Errorf("%w: token %d", ErrAlreadyRedeemed, tokenID)
	}
	previous := cert.Owner
	cert.Owner = newOwner
	if err := e.state.CertificatePut(cert); err != nil {
		return nil, err
	}
	e.emit(NewTransferredEvent(cert, previous))
	return cert.Clone(), nil
}

// GetCertificate returns a copy of the stored certificate.
func (e *Engine) GetCertificate(tokenID uint64) (*Certificate, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadCertificate(tokenID)
}

// ListByOwner returns the certificates currently owned by the address.
func (e *Engine) ListByOwner(owner [20]byte) ([]*Certificate, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.CertificatesByOwner(owner[:])
	if err != nil {
		return nil, err
	}
	certs := make([]*Certificate, 0, len(ids))
	for _, id := range ids {
		cert, ok := e.state.CertificateGet(id)
		if !ok || cert.Owner != owner {
			continue
		}
		certs = append(certs, cert.Clone())
	}
	return certs, nil
}

func (e *Engine) loadCertificate(id uint64) (*Certificate, error) {
	cert, ok := e.state.CertificateGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownToken, id)
	}
	return cert, nil
}
