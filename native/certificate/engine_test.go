package certificate

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"amanahchain/native/donation"
)

type mockState struct {
	certs  map[uint64]*Certificate
	byOwn  map[[20]byte][]uint64
	nextID uint64
	roles  map[string]map[[20]byte]bool
}

func newMockState() *mockState {
	return &mockState{
		certs: make(map[uint64]*Certificate),
		byOwn: make(map[[20]byte][]uint64),
		roles: make(map[string]map[[20]byte]bool),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) CertificatePut(c *Certificate) error {
	sanitized, err := SanitizeCertificate(c)
	if err != nil {
		return err
	}
	m.certs[sanitized.TokenID] = sanitized
	found := false
	for _, id := range m.byOwn[sanitized.Owner] {
		if id == sanitized.TokenID {
			found = true
			break
		}
	}
	if !found {
		m.byOwn[sanitized.Owner] = append(m.byOwn[sanitized.Owner], sanitized.TokenID)
	}
	return nil
}

func (m *mockState) CertificateGet(id uint64) (*Certificate, bool) {
	cert, ok := m.certs[id]
	if !ok {
		return nil, false
	}
	return cert.Clone(), true
}

func (m *mockState) CertificatesByOwner(owner []byte) ([]uint64, error) {
	var key [20]byte
	copy(key[:], owner)
	return append([]uint64(nil), m.byOwn[key]...), nil
}

func (m *mockState) NextCertificateID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) HasRole(role string, addr []byte) bool {
	members, ok := m.roles[role]
	if !ok {
		return false
	}
	var key [20]byte
	copy(key[:], addr)
	return members[key]
}

func (m *mockState) grantRole(role string, addr [20]byte) {
	if m.roles[role] == nil {
		m.roles[role] = make(map[[20]byte]bool)
	}
	m.roles[role][addr] = true
}

func (m *mockState) ModuleVaultAddress(module string) [20]byte {
	var addr [20]byte
	copy(addr[:], module)
	addr[19] = 0xEE
	return addr
}

type mockLedger struct {
	totals map[string]*big.Int
	debits []debit
}

type debit struct {
	pool   string
	amount *big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{totals: make(map[string]*big.Int)}
}

func (m *mockLedger) PoolExists(code string) bool {
	_, ok := m.totals[code]
	return ok
}

func (m *mockLedger) PoolTotal(code string) (*big.Int, error) {
	total, ok := m.totals[code]
	if !ok {
		return nil, fmt.Errorf("unknown pool %s", code)
	}
	return new(big.Int).Set(total), nil
}

func (m *mockLedger) DebitForRedemption(code string, amount *big.Int) error {
	total, ok := m.totals[code]
	if !ok {
		return fmt.Errorf("unknown pool %s", code)
	}
	if total.Cmp(amount) < 0 {
		return fmt.Errorf("pool %s underfunded", code)
	}
	total.Sub(total, amount)
	m.debits = append(m.debits, debit{pool: code, amount: new(big.Int).Set(amount)})
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockLedger) {
	t.Helper()
	state := newMockState()
	ledger := newMockLedger()
	ledger.totals["FOOD_BANK"] = big.NewInt(1000)
	engine := NewEngine()
	engine.SetState(state)
	engine.SetPoolLedger(ledger)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state, ledger
}

func TestMintAuthorization(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	owner := newTestAddress(0x0A)

	stranger := newTestAddress(0x0B)
	if _, err := engine.Mint(stranger, owner, "FOOD_BANK", big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	ledgerAddr := state.ModuleVaultAddress(donation.ModuleName)
	id, err := engine.Mint(ledgerAddr, owner, "FOOD_BANK", big.NewInt(100))
	if err != nil {
		t.Fatalf("mint from ledger: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected token id 1, got %d", id)
	}

	admin := newTestAddress(0x0C)
	state.grantRole(donation.RolePoolAdmin, admin)
	if _, err := engine.Mint(admin, owner, "FOOD_BANK", big.NewInt(50)); err != nil {
		t.Fatalf("mint from admin: %v", err)
	}
}

func TestMintValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	ledgerAddr := state.ModuleVaultAddress(donation.ModuleName)
	owner := newTestAddress(0x0A)

	if _, err := engine.Mint(ledgerAddr, owner, "MISSING", big.NewInt(100)); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
	if _, err := engine.Mint(ledgerAddr, owner, "FOOD_BANK", big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero face value")
	}
}

func TestRedeemDebitsPoolExactlyOnce(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	owner := newTestAddress(0x0A)
	ledgerAddr := state.ModuleVaultAddress(donation.ModuleName)

	id, err := engine.Mint(ledgerAddr, owner, "FOOD_BANK", big.NewInt(400))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := engine.Redeem(newTestAddress(0x0B), id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner, got %v", err)
	}

	cert, err := engine.Redeem(owner, id)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if cert.Status != StatusRedeemed {
		t.Fatalf("expected REDEEMED, got %s", cert.Status)
	}
	if cert.RedeemedAt == 0 {
		t.Fatalf("expected redemption timestamp")
	}
	if len(ledger.debits) != 1 {
		t.Fatalf("expected exactly one debit, got %d", len(ledger.debits))
	}
	if ledger.debits[0].amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected debit 400, got %s", ledger.debits[0].amount)
	}
	if ledger.totals["FOOD_BANK"].Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected pool total 600, got %s", ledger.totals["FOOD_BANK"])
	}

	if _, err := engine.Redeem(owner, id); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("expected ErrAlreadyRedeemed, got %v", err)
	}
	if len(ledger.debits) != 1 {
		t.Fatalf("double redeem must not debit again, got %d debits", len(ledger.debits))
	}
}

func TestRedeemUnderfundedPool(t *testing.T) {
	engine, state, ledger := newTestEngine(t)
	owner := newTestAddress(0x0A)
	ledgerAddr := state.ModuleVaultAddress(donation.ModuleName)

	id, err := engine.Mint(ledgerAddr, owner, "FOOD_BANK", big.NewInt(400))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	ledger.totals["FOOD_BANK"] = big.NewInt(399)

	if _, err := engine.Redeem(owner, id); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	cert, err := engine.GetCertificate(id)
	if err != nil {
		t.Fatalf("get certificate: %v", err)
	}
	if cert.Status != StatusUnredeemed {
		t.Fatalf("failed redemption must leave certificate unredeemed")
	}
}

func TestTransferRules(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	owner := newTestAddress(0x0A)
	recipient := newTestAddress(0x0B)
	ledgerAddr := state.ModuleVaultAddress(donation.ModuleName)

	id, err := engine.Mint(ledgerAddr, owner, "FOOD_BANK", big.NewInt(100))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := engine.Transfer(recipient, id, recipient); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	cert, err := engine.Transfer(owner, id, recipient)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if cert.Owner != recipient {
		t.Fatalf("expected new owner after transfer")
	}

	mine, err := engine.ListByOwner(owner)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("previous owner must not list transferred certificates, got %d", len(mine))
	}
	theirs, err := engine.ListByOwner(recipient)
	if err != nil {
		t.Fatalf("list by owner: %v", err)
	}
	if len(theirs) != 1 || theirs[0].TokenID != id {
		t.Fatalf("expected recipient to hold token %d", id)
	}

	// The recipient redeems, after which the certificate is frozen.
	if _, err := engine.Redeem(recipient, id); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := engine.Transfer(recipient, id, owner); !errors.Is(err, ErrAlreadyRedeemed) {
		t.Fatalf("redeemed certificates must not transfer, got %v", err)
	}
}

func TestGetCertificateUnknown(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.GetCertificate(42); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}
