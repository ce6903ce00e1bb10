package exchange

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"amanahchain/core/events"
	"amanahchain/core/types"
	nativecommon "amanahchain/native/common"
)

// ModuleName identifies the exchange for custody vault derivation and pause
// control.
const ModuleName = "exchange"

var errNilState = errors.New("exchange engine: state not configured")

type engineState interface {
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	NextOrderID() (uint64, error)
	OrderCount() (uint64, error)
	TokenExists(symbol string) bool
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	ModuleVaultAddress(module string) [20]byte
}

type exchangeEvent struct {
	evt *types.Event
}

func (e exchangeEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e exchangeEvent) Event() *types.Event { return e.evt }

// Engine implements the escrow-first peer-to-peer exchange. Placing an order
// locks the maker's offer into the module vault; every fill is a single atomic
// value exchange, so neither side can renege after the other has committed.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  nativecommon.PauseView
	nowFn   func() int64
}

// NewEngine creates an exchange engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
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
	e.emitter.Emit(exchangeEvent{evt: evt})
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

// VaultAddress returns the custody account holding all order escrow.
func (e *Engine) VaultAddress() ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	return e.state.ModuleVaultAddress(ModuleName), nil
}

// PlaceOrder escrows the maker's offer and records the order in state Open.
// The price is fixed at creation by the requestAmount/offerAmount ratio.
func (e *Engine) PlaceOrder(maker [20]byte, offerToken string, offerAmount *big.Int, requestToken string, requestAmount *big.Int) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	order, err := SanitizeOrder(&Order{
		Maker:         maker,
		OfferToken:    offerToken,
		OfferAmount:   offerAmount,
		RequestToken:  requestToken,
		RequestAmount: requestAmount,
		Filled:        big.NewInt(0),
		Status:        OrderOpen,
		CreatedAt:     e.now(),
	})
	if err != nil {
		return nil, err
	}
	for _, symbol := range []string{order.OfferToken, order.RequestToken} {
		if !e.state.TokenExists(symbol) {
			return nil, fmt.Errorf("exchange: token %s not registered", symbol)
		}
	}
	vault := e.state.ModuleVaultAddress(ModuleName)
	if err := e.transferToken(maker, vault, order.OfferToken, order.OfferAmount); err != nil {
		return nil, err
	}
	id, err := e.state.NextOrderID()
	if err != nil {
		return nil, err
	}
	order.ID = id
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderPlacedEvent(order))
	return order.Clone(), nil
}

// FillOrder settles fillAmount of the order's offer against the taker. The
// quote owed to the maker is the pro-rata share of the request amount rounded
// up, so dust-sized fills can never short the maker. The matching escrow is
// released to the taker in the same operation.
func (e *Engine) FillOrder(taker [20]byte, id uint64, fillAmount *big.Int) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotOpen, id, order.Status)
	}
	if taker == order.Maker {
		return nil, ErrSelfFill
	}
	if fillAmount == nil || fillAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	remaining := order.Remaining()
	if fillAmount.Cmp(remaining) > 0 {
		return nil, fmt.Errorf("%w: %s remaining, %s requested", ErrExceedsRemaining, remaining, fillAmount)
	}
	quote := quoteFor(fillAmount, order.RequestAmount, order.OfferAmount)
	takerBal, err := e.state.Balance(taker[:], order.RequestToken)
	if err != nil {
		return nil, err
	}
	if takerBal.Cmp(quote) < 0 {
		return nil, fmt.Errorf("%w: balance %s below quote %s", ErrInsufficientFunds, takerBal, quote)
	}
	if err := e.transferToken(taker, order.Maker, order.RequestToken, quote); err != nil {
		return nil, err
	}
	vault := e.state.ModuleVaultAddress(ModuleName)
	if err := e.transferToken(vault, taker, order.OfferToken, fillAmount); err != nil {
		return nil, err
	}
	order.Filled = new(big.Int).Add(order.Filled, fillAmount)
	if order.Filled.Cmp(order.OfferAmount) == 0 {
		order.Status = OrderFilled
	} else {
		order.Status = OrderPartiallyFilled
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderFilledEvent(order, taker, fillAmount, quote))
	return order.Clone(), nil
}

// CancelOrder refunds the unfilled escrow to the maker and finalises the
// order. Only the maker may cancel, and only while the order is not terminal.
func (e *Engine) CancelOrder(caller [20]byte, id uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		return nil, err
	}
	order, err := e.loadOrder(id)
	if err != nil {
		return nil, err
	}
	if caller != order.Maker {
		return nil, ErrUnauthorized
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotOpen, id, order.Status)
	}
	refund := order.Remaining()
	if refund.Sign() > 0 {
		vault := e.state.ModuleVaultAddress(ModuleName)
		if err := e.transferToken(vault, order.Maker, order.OfferToken, refund); err != nil {
			return nil, err
		}
	}
	order.Status = OrderCancelled
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}
	e.emit(NewOrderCancelledEvent(order, refund))
	return order.Clone(), nil
}

// GetOrder returns a copy of the stored order.
func (e *Engine) GetOrder(id uint64) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadOrder(id)
}

// ListOrders returns up to limit most recent orders, newest first. A zero
// limit returns every order.
func (e *Engine) ListOrders(limit uint64) ([]*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.OrderCount()
	if err != nil {
		return nil, err
	}
	orders := make([]*Order, 0, count)
	for id := count; id >= 1; id-- {
		order, ok := e.state.OrderGet(id)
		if !ok {
			continue
		}
		orders = append(orders, order.Clone())
		if limit > 0 && uint64(len(orders)) >= limit {
			break
		}
	}
	return orders, nil
}

func (e *Engine) loadOrder(id uint64) (*Order, error) {
	order, ok := e.state.OrderGet(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	return order, nil
}

// quoteFor computes ceil(fill * request / offer).
func quoteFor(fill, request, offer *big.Int) *big.Int {
	num := new(big.Int).Mul(fill, request)
	quote, rem := new(big.Int).QuoRem(num, offer, new(big.Int))
	if rem.Sign() != 0 {
		quote.Add(quote, big.NewInt(1))
	}
	return quote
}

func (e *Engine) transferToken(from, to [20]byte, token string, amount *big.Int) error {
	symbol := strings.ToUpper(strings.TrimSpace(token))
	fromBal, err := e.state.Balance(from[:], symbol)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s below %s", ErrInsufficientFunds, fromBal, amount)
	}
	toBal, err := e.state.Balance(to[:], symbol)
	if err != nil {
		return err
	}
	if err := e.state.SetBalance(from[:], symbol, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return e.state.SetBalance(to[:], symbol, new(big.Int).Add(toBal, amount))
}
