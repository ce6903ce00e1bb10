package donation

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"amanahchain/core/events"
)

type mockState struct {
	pools    map[string]*Pool
	poolList []string
	records  []*Record
	roles    map[string]map[[20]byte]bool
	tokens   map[string]bool
	balances map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		pools:    make(map[string]*Pool),
		roles:    make(map[string]map[[20]byte]bool),
		tokens:   map[string]bool{StableToken: true},
		balances: make(map[string]*big.Int),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) PoolPut(p *Pool) error {
	sanitized, err := SanitizePool(p)
	if err != nil {
		return err
	}
	if _, ok := m.pools[sanitized.Code]; !ok {
		m.poolList = append(m.poolList, sanitized.Code)
	}
	m.pools[sanitized.Code] = sanitized
	return nil
}

func (m *mockState) PoolGet(code string) (*Pool, bool) {
	pool, ok := m.pools[code]
	if !ok {
		return nil, false
	}
	return pool.Clone(), true
}

func (m *mockState) PoolList() ([]string, error) {
	return append([]string(nil), m.poolList...), nil
}

func (m *mockState) DonationAppend(r *Record) (uint64, error) {
	clone := r.Clone()
	clone.Sequence = uint64(len(m.records) + 1)
	m.records = append(m.records, clone)
	return clone.Sequence, nil
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

func (m *mockState) TokenExists(symbol string) bool {
	return m.tokens[symbol]
}

func (m *mockState) balanceKey(addr []byte, symbol string) string {
	return fmt.Sprintf("%x/%s", addr, symbol)
}

func (m *mockState) Balance(addr []byte, symbol string) (*big.Int, error) {
	bal, ok := m.balances[m.balanceKey(addr, symbol)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockState) SetBalance(addr []byte, symbol string, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative balance")
	}
	m.balances[m.balanceKey(addr, symbol)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) ModuleVaultAddress(module string) [20]byte {
	var addr [20]byte
	copy(addr[:], module)
	addr[19] = 0xEE
	return addr
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

type mockMinter struct {
	calls []mintCall
	err   error
}

type mintCall struct {
	caller    [20]byte
	owner     [20]byte
	pool      string
	faceValue *big.Int
}

func (m *mockMinter) Mint(caller, owner [20]byte, poolCode string, faceValue *big.Int) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.calls = append(m.calls, mintCall{caller: caller, owner: owner, pool: poolCode, faceValue: new(big.Int).Set(faceValue)})
	return uint64(len(m.calls)), nil
}

func newTestEngine(t *testing.T) (*Engine, *mockState, *captureEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, state, emitter
}

func registerTestPool(t *testing.T, engine *Engine, state *mockState, code string, handler [20]byte, minCert *big.Int) *Pool {
	t.Helper()
	admin := newTestAddress(0x01)
	state.grantRole(RolePoolAdmin, admin)
	pool, err := engine.RegisterPool(admin, code, handler, minCert)
	if err != nil {
		t.Fatalf("register pool: %v", err)
	}
	return pool
}

func TestRegisterPoolRequiresAdmin(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	if _, err := engine.RegisterPool(newTestAddress(0x02), "FOOD_BANK", [20]byte{}, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRegisterPoolNormalizesAndRejectsDuplicates(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	pool := registerTestPool(t, engine, state, "  food_bank ", newTestAddress(0x0F), big.NewInt(50))
	if pool.Code != "FOOD_BANK" {
		t.Fatalf("expected normalized code FOOD_BANK, got %s", pool.Code)
	}
	if !pool.Active {
		t.Fatalf("expected new pool to be active")
	}
	admin := newTestAddress(0x01)
	if _, err := engine.RegisterPool(admin, "food_bank", [20]byte{}, nil); !errors.Is(err, ErrDuplicatePool) {
		t.Fatalf("expected ErrDuplicatePool, got %v", err)
	}
}

func TestDonateUpdatesLedger(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	registerTestPool(t, engine, state, "FOOD_BANK", [20]byte{}, nil)

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	seq, err := engine.Donate(donor, "FOOD_BANK", CategoryZakat, big.NewInt(400))
	if err != nil {
		t.Fatalf("donate: %v", err)
	}
	if seq != 1 {
		t.Fatalf("expected sequence 1, got %d", seq)
	}

	vault := state.ModuleVaultAddress(ModuleName)
	vaultBal, _ := state.Balance(vault[:], StableToken)
	if vaultBal.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected vault balance 400, got %s", vaultBal)
	}
	donorBal, _ := state.Balance(donor[:], StableToken)
	if donorBal.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("expected donor balance 600, got %s", donorBal)
	}

	total, err := engine.PoolTotal("FOOD_BANK")
	if err != nil {
		t.Fatalf("pool total: %v", err)
	}
	if total.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected pool total 400, got %s", total)
	}
	zakat, err := engine.PoolBalance("FOOD_BANK", CategoryZakat)
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if zakat.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("expected zakat bucket 400, got %s", zakat)
	}
	sadaqah, _ := engine.PoolBalance("FOOD_BANK", CategorySadaqah)
	if sadaqah.Sign() != 0 {
		t.Fatalf("expected empty sadaqah bucket, got %s", sadaqah)
	}

	if len(state.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(state.records))
	}
	record := state.records[0]
	if record.Donor != donor || record.PoolCode != "FOOD_BANK" || record.Category != CategoryZakat {
		t.Fatalf("unexpected record: %+v", record)
	}

	var sawDonated bool
	for _, evt := range emitter.events {
		if evt.EventType() == EventTypeDonated {
			sawDonated = true
		}
	}
	if !sawDonated {
		t.Fatalf("expected %s event", EventTypeDonated)
	}
}

func TestDonateValidation(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	registerTestPool(t, engine, state, "FOOD_BANK", [20]byte{}, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if _, err := engine.Donate(donor, "MISSING", CategorySadaqah, big.NewInt(10)); !errors.Is(err, ErrUnknownPool) {
		t.Fatalf("expected ErrUnknownPool, got %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", Category(9), big.NewInt(10)); !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(2000)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Sign() != 0 {
		t.Fatalf("failed donations must not move funds, pool holds %s", total)
	}
}

func TestDonateRetiredPoolRejected(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	registerTestPool(t, engine, state, "FOOD_BANK", [20]byte{}, nil)
	admin := newTestAddress(0x01)
	if err := engine.RetirePool(admin, "FOOD_BANK"); err != nil {
		t.Fatalf("retire pool: %v", err)
	}
	// Retiring twice is a no-op.
	if err := engine.RetirePool(admin, "FOOD_BANK"); err != nil {
		t.Fatalf("retire pool again: %v", err)
	}

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(10)); !errors.Is(err, ErrPoolRetired) {
		t.Fatalf("expected ErrPoolRetired, got %v", err)
	}
}

func TestDonateMintsQualifyingCertificates(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	minter := &mockMinter{}
	engine.SetCertificateMinter(minter)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, big.NewInt(100))

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(99)); err != nil {
		t.Fatalf("donate below minimum: %v", err)
	}
	if len(minter.calls) != 0 {
		t.Fatalf("donation below minimum must not mint, got %d mints", len(minter.calls))
	}

	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(100)); err != nil {
		t.Fatalf("donate at minimum: %v", err)
	}
	if len(minter.calls) != 1 {
		t.Fatalf("expected 1 mint, got %d", len(minter.calls))
	}
	call := minter.calls[0]
	if call.caller != state.ModuleVaultAddress(ModuleName) {
		t.Fatalf("minter must be called by the donation vault")
	}
	if call.owner != donor || call.pool != "FOOD_BANK" || call.faceValue.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected mint call: %+v", call)
	}
}

func TestDonateWithoutHandlerSkipsMint(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	minter := &mockMinter{}
	engine.SetCertificateMinter(minter)
	registerTestPool(t, engine, state, "ORPHANS", [20]byte{}, nil)

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "ORPHANS", CategoryWaqf, big.NewInt(500)); err != nil {
		t.Fatalf("donate: %v", err)
	}
	if len(minter.calls) != 0 {
		t.Fatalf("handlerless pool must not mint, got %d mints", len(minter.calls))
	}
}

func TestWithdrawHandlerOnly(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(500)); err != nil {
		t.Fatalf("donate: %v", err)
	}

	if err := engine.Withdraw(donor, "FOOD_BANK", big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-handler, got %v", err)
	}
	if err := engine.Withdraw(handler, "FOOD_BANK", big.NewInt(600)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := engine.Withdraw(handler, "FOOD_BANK", big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	handlerBal, _ := state.Balance(handler[:], StableToken)
	if handlerBal.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected handler balance 200, got %s", handlerBal)
	}
	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected pool total 300, got %s", total)
	}
}

type denyPolicy struct{}

func (denyPolicy) AllowWithdrawal(*Pool, *big.Int) error {
	return errors.New("zakat withdrawals frozen")
}

func TestWithdrawPolicyVeto(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategoryZakat, big.NewInt(500)); err != nil {
		t.Fatalf("donate: %v", err)
	}

	engine.SetCategoryPolicy(denyPolicy{})
	if err := engine.Withdraw(handler, "FOOD_BANK", big.NewInt(100)); err == nil {
		t.Fatalf("expected policy veto")
	}
	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("vetoed withdrawal must not move funds, pool holds %s", total)
	}
}

func TestDebitForRedemption(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(500)); err != nil {
		t.Fatalf("donate: %v", err)
	}

	if err := engine.DebitForRedemption("FOOD_BANK", big.NewInt(600)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := engine.DebitForRedemption("FOOD_BANK", big.NewInt(300)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected pool total 200, got %s", total)
	}
	handlerBal, _ := state.Balance(handler[:], StableToken)
	if handlerBal.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected handler balance 300, got %s", handlerBal)
	}
}

func TestDebitForRedemptionDrainsCategoryBucket(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(100)); err != nil {
		t.Fatalf("donate: %v", err)
	}
	if err := engine.DebitForRedemption("FOOD_BANK", big.NewInt(100)); err != nil {
		t.Fatalf("debit: %v", err)
	}

	sadaqah, err := engine.PoolBalance("FOOD_BANK", CategorySadaqah)
	if err != nil {
		t.Fatalf("pool balance: %v", err)
	}
	if sadaqah.Sign() != 0 {
		t.Fatalf("drained pool must report an empty sadaqah bucket, got %s", sadaqah)
	}
	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Sign() != 0 {
		t.Fatalf("expected pool total 0, got %s", total)
	}
}

func TestWithdrawNetsCategoryBucketsProRata(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(1000)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategoryZakat, big.NewInt(300)); err != nil {
		t.Fatalf("donate zakat: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(100)); err != nil {
		t.Fatalf("donate sadaqah: %v", err)
	}

	if err := engine.Withdraw(handler, "FOOD_BANK", big.NewInt(200)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	zakat, _ := engine.PoolBalance("FOOD_BANK", CategoryZakat)
	if zakat.Cmp(big.NewInt(150)) != 0 {
		t.Fatalf("expected zakat bucket 150, got %s", zakat)
	}
	sadaqah, _ := engine.PoolBalance("FOOD_BANK", CategorySadaqah)
	if sadaqah.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("expected sadaqah bucket 50, got %s", sadaqah)
	}
	total, _ := engine.PoolTotal("FOOD_BANK")
	sum := new(big.Int).Add(zakat, sadaqah)
	if sum.Cmp(total) != 0 {
		t.Fatalf("buckets sum to %s, pool total is %s", sum, total)
	}
}

func TestWithdrawBucketRoundingResidue(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)
	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(4)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategoryZakat, big.NewInt(3)); err != nil {
		t.Fatalf("donate zakat: %v", err)
	}
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(1)); err != nil {
		t.Fatalf("donate sadaqah: %v", err)
	}

	if err := engine.Withdraw(handler, "FOOD_BANK", big.NewInt(3)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected pool total 1, got %s", total)
	}
	sum := big.NewInt(0)
	for _, category := range Categories() {
		bucket, err := engine.PoolBalance("FOOD_BANK", category)
		if err != nil {
			t.Fatalf("pool balance %s: %v", category, err)
		}
		if bucket.Sign() < 0 {
			t.Fatalf("bucket %s went negative: %s", category, bucket)
		}
		sum.Add(sum, bucket)
	}
	if sum.Cmp(total) != 0 {
		t.Fatalf("buckets sum to %s, pool total is %s", sum, total)
	}
}

func TestDonateFailedMintLeavesLedgerUntouched(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	minter := &mockMinter{err: errors.New("issuer rejected mint")}
	engine.SetCertificateMinter(minter)
	handler := newTestAddress(0x0F)
	registerTestPool(t, engine, state, "FOOD_BANK", handler, nil)

	donor := newTestAddress(0x0A)
	if err := state.SetBalance(donor[:], StableToken, big.NewInt(100)); err != nil {
		t.Fatalf("seed balance: %v", err)
	}

	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(100)); err == nil {
		t.Fatalf("expected mint failure to fail the donation")
	}

	donorBal, _ := state.Balance(donor[:], StableToken)
	if donorBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("failed donation must not move funds, donor holds %s", donorBal)
	}
	vault := state.ModuleVaultAddress(ModuleName)
	vaultBal, _ := state.Balance(vault[:], StableToken)
	if vaultBal.Sign() != 0 {
		t.Fatalf("expected empty vault, got %s", vaultBal)
	}
	total, _ := engine.PoolTotal("FOOD_BANK")
	if total.Sign() != 0 {
		t.Fatalf("expected pool total 0, got %s", total)
	}
	if len(state.records) != 0 {
		t.Fatalf("expected no donation records, got %d", len(state.records))
	}
	for _, evt := range emitter.events {
		if evt.EventType() == EventTypeDonated {
			t.Fatalf("failed donation must not emit %s", EventTypeDonated)
		}
	}
}

type pausedView struct{ module string }

func (p pausedView) IsPaused(module string) bool { return module == p.module }

func TestDonationModulePause(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	registerTestPool(t, engine, state, "FOOD_BANK", [20]byte{}, nil)
	engine.SetPauses(pausedView{module: ModuleName})

	donor := newTestAddress(0x0A)
	if _, err := engine.Donate(donor, "FOOD_BANK", CategorySadaqah, big.NewInt(10)); err == nil {
		t.Fatalf("expected pause guard to reject donation")
	}
}
