package donation

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"amanahchain/core/events"
	"amanahchain/core/types"
	nativecommon "amanahchain/native/common"
)

const (
	// RolePoolAdmin marks the administrator identities allowed to register
	// and retire pools.
	RolePoolAdmin = "ROLE_POOL_ADMIN"

	// ModuleName identifies the donation ledger for custody vault derivation
	// and pause control.
	ModuleName = "donation"

	// StableToken is the reference asset all donations are denominated in.
	StableToken = "MUSD"
)

var (
	errNilState  = errors.New("donation engine: state not configured")
	errNilAmount = errors.New("donation engine: nil amount")
)

type engineState interface {
	PoolPut(*Pool) error
	PoolGet(code string) (*Pool, bool)
	PoolList() ([]string, error)
	DonationAppend(*Record) (uint64, error)
	HasRole(role string, addr []byte) bool
	TokenExists(symbol string) bool
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	ModuleVaultAddress(module string) [20]byte
}

// CertificateMinter is the fulfillment hook invoked on qualifying donations.
// The certificate issuer satisfies it; the engine only ever calls it with its
// own module address as the caller.
type CertificateMinter interface {
	Mint(caller [20]byte, owner [20]byte, poolCode string, faceValue *big.Int) (uint64, error)
}

// CategoryPolicy is the per-category rule extension point consulted before a
// handler withdrawal. The default policy admits every withdrawal; stricter
// rules (e.g. zakat eligibility) can be attached without touching stored
// pools.
type CategoryPolicy interface {
	AllowWithdrawal(pool *Pool, amount *big.Int) error
}

type allowAllPolicy struct{}

func (allowAllPolicy) AllowWithdrawal(*Pool, *big.Int) error { return nil }

type donationEvent struct {
	evt *types.Event
}

func (e donationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e donationEvent) Event() *types.Event { return e.evt }

// Engine owns the pool registry and the append-only donation ledger. All
// custody movements flow through the module vault account held in the token
// ledger.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	minter  CertificateMinter
	policy  CategoryPolicy
	nowFn   func() int64
}

// NewEngine creates a donation engine with a no-op emitter and the
// admit-everything category policy.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		policy:  allowAllPolicy{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetCertificateMinter registers the certificate issuer invoked on qualifying
// donations. Passing nil disables automatic minting.
func (e *Engine) SetCertificateMinter(m CertificateMinter) { e.minter = m }

// SetCategoryPolicy overrides the withdrawal rule set. Passing nil restores
// the default admit-everything policy.
func (e *Engine) SetCategoryPolicy(p CategoryPolicy) {
	if p == nil {
		e.policy = allowAllPolicy{}
		return
	}
	e.policy = p
}

// SetNowFunc overrides the time source used for record timestamps. Primarily
// intended for tests.
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
	e.emitter.Emit(donationEvent{evt: evt})
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

// VaultAddress returns the custody account holding all pooled donations.
func (e *Engine) VaultAddress() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	return e.state.ModuleVaultAddress(ModuleName), nil
}

// RegisterPool creates a pool with zero balances bound to the supplied
// fulfillment handler. Only ROLE_POOL_ADMIN holders may register pools.
// Donations of at least minCertAmount mint a redemption certificate when a
// handler and minter are configured; a zero minimum qualifies every donation.
func (e *Engine) RegisterPool(caller [20]byte, code string, handler [20]byte, minCertAmount *big.Int) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	normalized, err := NormalizePoolCode(code)
	if err != nil {
		return nil, err
	}
	if !e.state.HasRole(RolePoolAdmin, caller[:]) {
		return nil, ErrUnauthorized
	}
	if minCertAmount != nil && minCertAmount.Sign() < 0 {
		return nil, fmt.Errorf("donation: minimum certificate amount must be non-negative")
	}
	if _, exists := e.state.PoolGet(normalized); exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePool, normalized)
	}
	totals := make([]*big.Int, categoryCount)
	for i := range totals {
		totals[i] = big.NewInt(0)
	}
	pool := &Pool{
		Code:           normalized,
		Handler:        handler,
		MinCertAmount:  cloneAmount(minCertAmount),
		TotalBalance:   big.NewInt(0),
		CategoryTotals: totals,
		Active:         true,
		CreatedAt:      e.now(),
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(NewPoolRegisteredEvent(pool))
	return pool.Clone(), nil
}

// RetirePool deactivates a pool so it no longer accepts donations. Existing
// balances stay withdrawable by the handler and redeemable by certificate
// holders.
func (e *Engine) RetirePool(caller [20]byte, code string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	if !e.state.HasRole(RolePoolAdmin, caller[:]) {
		return ErrUnauthorized
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return err
	}
	if !pool.Active {
		return nil
	}
	pool.Active = false
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewPoolRetiredEvent(pool.Code))
	return nil
}

// Donate moves amount of the reference asset from the caller into the pool's
// custody, bumps the category bucket, appends the immutable donation record
// and, when the donation qualifies, mints a redemption certificate to the
// donor. The new record's sequence number is returned.
func (e *Engine) Donate(caller [20]byte, code string, category Category, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return 0, err
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return 0, err
	}
	if !pool.Active {
		return 0, fmt.Errorf("%w: %s", ErrPoolRetired, pool.Code)
	}
	if !category.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	vault := e.state.ModuleVaultAddress(ModuleName)
	if !e.state.TokenExists(StableToken) {
		return 0, fmt.Errorf("donation: token %s not registered", StableToken)
	}
	donorBal, err := e.state.Balance(caller[:], StableToken)
	if err != nil {
		return 0, err
	}
	if donorBal.Cmp(amount) < 0 {
		return 0, fmt.Errorf("%w: balance %s below %s", ErrInsufficientFunds, donorBal, amount)
	}
	// The mint runs before any ledger write: a rejected mint must leave the
	// donation unrecorded, and with the funds check above the writes below
	// cannot fail validation.
	if e.qualifiesForCertificate(pool, amount) {
		if _, err := e.minter.Mint(vault, caller, pool.Code, amount); err != nil {
			return 0, fmt.Errorf("donation: mint certificate: %w", err)
		}
	}
	if err := e.transfer(caller, vault, amount); err != nil {
		return 0, err
	}
	pool.TotalBalance = new(big.Int).Add(pool.TotalBalance, amount)
	pool.CategoryTotals[category] = new(big.Int).Add(pool.CategoryTotals[category], amount)
	if err := e.state.PoolPut(pool); err != nil {
		return 0, err
	}
	record := &Record{
		Donor:     caller,
		PoolCode:  pool.Code,
		Category:  category,
		Amount:    cloneAmount(amount),
		Timestamp: e.now(),
	}
	seq, err := e.state.DonationAppend(record)
	if err != nil {
		return 0, err
	}
	record.Sequence = seq
	e.emit(NewDonatedEvent(record))
	return seq, nil
}

func (e *Engine) qualifiesForCertificate(pool *Pool, amount *big.Int) bool {
	if e.minter == nil || !pool.HasHandler() {
		return false
	}
	if pool.MinCertAmount == nil || pool.MinCertAmount.Sign() == 0 {
		return true
	}
	return amount.Cmp(pool.MinCertAmount) >= 0
}

// PoolBalance returns the balance the pool currently holds under the given
// category.
func (e *Engine) PoolBalance(code string, category Category) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return nil, err
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCategory, category)
	}
	return pool.CategoryTotal(category), nil
}

// PoolTotal returns the pool's spendable balance (donations minus handler
// withdrawals and certificate redemptions).
func (e *Engine) PoolTotal(code string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return nil, err
	}
	return cloneAmount(pool.TotalBalance), nil
}

// GetPool returns a copy of the stored pool.
func (e *Engine) GetPool(code string) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(code)
}

// ListPools returns copies of every registered pool in registration order.
func (e *Engine) ListPools() ([]*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	codes, err := e.state.PoolList()
	if err != nil {
		return nil, err
	}
	pools := make([]*Pool, 0, len(codes))
	for _, code := range codes {
		pool, ok := e.state.PoolGet(code)
		if !ok {
			continue
		}
		pools = append(pools, pool.Clone())
	}
	return pools, nil
}

// PoolExists reports whether the code maps to a registered pool.
func (e *Engine) PoolExists(code string) bool {
	if e == nil || e.state == nil {
		return false
	}
	normalized, err := NormalizePoolCode(code)
	if err != nil {
		return false
	}
	_, ok := e.state.PoolGet(normalized)
	return ok
}

// Withdraw pays amount of the reference asset from the pool's custody to the
// registered fulfillment handler. Only the handler may call it; the configured
// category policy may veto it. The debit is netted across the category buckets
// pro rata so they always sum to the pool total.
func (e *Engine) Withdraw(caller [20]byte, code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return err
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return err
	}
	if !pool.HasHandler() || caller != pool.Handler {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if pool.TotalBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: pool %s holds %s", ErrInsufficientFunds, pool.Code, pool.TotalBalance)
	}
	if err := e.policy.AllowWithdrawal(pool.Clone(), cloneAmount(amount)); err != nil {
		return err
	}
	vault := e.state.ModuleVaultAddress(ModuleName)
	if err := e.transfer(vault, pool.Handler, amount); err != nil {
		return err
	}
	debitCategoryBuckets(pool, amount)
	pool.TotalBalance = new(big.Int).Sub(pool.TotalBalance, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewWithdrawnEvent(pool.Code, pool.Handler, amount, pool.TotalBalance))
	return nil
}

// DebitForRedemption settles a certificate redemption: it debits the pool
// ledger by the face value and releases the backing funds to the fulfillment
// handler. The certificate issuer is the only caller; it performs its own
// authorization before invoking the debit.
func (e *Engine) DebitForRedemption(code string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	pool, err := e.loadPool(code)
	if err != nil {
		return err
	}
	if amount == nil {
		return errNilAmount
	}
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if pool.TotalBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: pool %s holds %s", ErrInsufficientFunds, pool.Code, pool.TotalBalance)
	}
	if pool.HasHandler() {
		vault := e.state.ModuleVaultAddress(ModuleName)
		if err := e.transfer(vault, pool.Handler, amount); err != nil {
			return err
		}
	}
	debitCategoryBuckets(pool, amount)
	pool.TotalBalance = new(big.Int).Sub(pool.TotalBalance, amount)
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewRedemptionDebitEvent(pool.Code, amount, pool.TotalBalance))
	return nil
}

// debitCategoryBuckets nets a balance decrease across the category buckets in
// proportion to their current balances, keeping the buckets summing to the
// pool total. Rounding residue is drained from the first buckets still holding
// funds, in category order.
func debitCategoryBuckets(pool *Pool, amount *big.Int) {
	total := pool.TotalBalance
	if total == nil || total.Sign() == 0 {
		return
	}
	remaining := new(big.Int).Set(amount)
	for i, bucket := range pool.CategoryTotals {
		if remaining.Sign() == 0 {
			return
		}
		if bucket == nil || bucket.Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(amount, bucket)
		share.Quo(share, total)
		if share.Cmp(bucket) > 0 {
			share.Set(bucket)
		}
		if share.Cmp(remaining) > 0 {
			share.Set(remaining)
		}
		pool.CategoryTotals[i] = new(big.Int).Sub(bucket, share)
		remaining.Sub(remaining, share)
	}
	for i, bucket := range pool.CategoryTotals {
		if remaining.Sign() == 0 {
			return
		}
		if bucket == nil || bucket.Sign() == 0 {
			continue
		}
		take := new(big.Int).Set(bucket)
		if take.Cmp(remaining) > 0 {
			take.Set(remaining)
		}
		pool.CategoryTotals[i] = new(big.Int).Sub(bucket, take)
		remaining.Sub(remaining, take)
	}
}

func (e *Engine) loadPool(code string) (*Pool, error) {
	normalized, err := NormalizePoolCode(code)
	if err != nil {
		return nil, err
	}
	pool, ok := e.state.PoolGet(normalized)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPool, normalized)
	}
	return pool, nil
}

func (e *Engine) transfer(from, to [20]byte, amount *big.Int) error {
	if !e.state.TokenExists(StableToken) {
		return fmt.Errorf("donation: token %s not registered", StableToken)
	}
	fromBal, err := e.state.Balance(from[:], StableToken)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s below %s", ErrInsufficientFunds, fromBal, amount)
	}
	toBal, err := e.state.Balance(to[:], StableToken)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(from[:], StableToken, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.state.SetBalance(to[:], StableToken, new(big.Int).Add(toBal, amount))
}
