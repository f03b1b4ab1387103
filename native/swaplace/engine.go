package swaplace

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swaplace/core/events"
	nativecommon "swaplace/native/common"
)

// ModuleName identifies the engine in pause and quota configuration.
const ModuleName = "swaplace"

const (
	OpCreate = "create"
	OpAccept = "accept"
	OpCancel = "cancel"
)

type engineState interface {
	kvState
	Snapshot() int
	RevertToSnapshot(id int) error
	Balance(addr common.Address) (*big.Int, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// Observer receives the outcome of every mutating operation.
type Observer interface {
	Observe(operation string, class ErrorClass)
}

// Engine runs the swap lifecycle on top of an injected state. The engine's
// own address escrows owner-attached native value and is the operator token
// holders pre-authorize. An Engine is not safe for concurrent use; callers
// serialize operations and own commit of the state.
type Engine struct {
	state      engineState
	store      *Store
	dispatcher *Dispatcher
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	quota      nativecommon.Quota
	observer   Observer
	nowFn      func() int64
}

// NewEngine creates an engine acting as address and resolving tokens through
// registry. Callers must attach a state via SetState.
func NewEngine(address common.Address, registry *Registry) *Engine {
	return &Engine{
		dispatcher: NewDispatcher(registry, address),
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	if state == nil {
		e.store = nil
		return
	}
	e.store = NewStore(state)
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetPauses wires the pause view consulted before every mutation.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetQuota limits how many swaps one owner may create per quota epoch and how
// much wei those swaps may escrow.
func (e *Engine) SetQuota(q nativecommon.Quota) { e.quota = q }

// SetObserver wires an operation observer such as the metrics registry.
func (e *Engine) SetObserver(o Observer) { e.observer = o }

// Address returns the engine's escrow and operator address.
func (e *Engine) Address() common.Address { return e.dispatcher.Operator() }

// Registry returns the token registry used for dispatch.
func (e *Engine) Registry() *Registry { return e.dispatcher.registry }

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

// begin checks preconditions shared by every mutation and returns a function
// that reverts to the entry snapshot when the operation failed.
func (e *Engine) begin(op string) (func(*error), error) {
	if err := nativecommon.Guard(e.pauses, ModuleName); err != nil {
		e.observe(op, err)
		return nil, err
	}
	if e.state == nil || e.store == nil {
		e.observe(op, errNilState)
		return nil, errNilState
	}
	snapshot := e.state.Snapshot()
	return func(errp *error) {
		if *errp != nil {
			if rerr := e.state.RevertToSnapshot(snapshot); rerr != nil {
				*errp = errors.Join(*errp, rerr)
			}
		}
		e.observe(op, *errp)
	}, nil
}

func (e *Engine) observe(op string, err error) {
	if e.observer != nil {
		e.observer.Observe(op, Classify(err))
	}
}

// Create stores swap on behalf of caller and returns its id. For owner-paid
// swaps attached must equal the configured native value and is escrowed by
// the engine; otherwise attached must be zero.
func (e *Engine) Create(caller common.Address, swap *Swap, attached *big.Int) (id uint64, err error) {
	finish, err := e.begin(OpCreate)
	if err != nil {
		return 0, err
	}
	defer finish(&err)

	if swap == nil {
		return 0, fmt.Errorf("%w: nil swap", ErrInvalidAssetsLength)
	}
	if swap.Owner == (common.Address{}) {
		return 0, fmt.Errorf("%w: zero owner", ErrInvalidAddress)
	}
	if swap.Owner != caller {
		return 0, fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	if len(swap.Biding) == 0 || len(swap.Asking) == 0 {
		return 0, fmt.Errorf("%w: biding=%d asking=%d", ErrInvalidAssetsLength, len(swap.Biding), len(swap.Asking))
	}
	if err := validateAssets(swap.Biding); err != nil {
		return 0, err
	}
	if err := validateAssets(swap.Asking); err != nil {
		return 0, err
	}
	cfg := swap.Terms()
	if expired(cfg.Expiry, e.now()) {
		return 0, &ExpiryError{Expiry: cfg.Expiry}
	}
	escrow, err := createValue(cfg, swap.Owner, attached)
	if err != nil {
		return 0, err
	}
	if err := e.chargeQuota(swap.Owner, cfg); err != nil {
		return 0, err
	}

	id, err = e.store.Insert(swap.Clone())
	if err != nil {
		return 0, err
	}
	if escrow.Sign() > 0 {
		if err := e.state.Transfer(caller, e.Address(), escrow); err != nil {
			return 0, err
		}
	}
	e.emit(events.SwapCreated{ID: id, Owner: swap.Owner, Allowed: cfg.Allowed})
	return id, nil
}

// Accept settles swap id. The record is removed before any token call, then
// every biding asset moves owner→receiver and every asking asset moves
// caller→owner, followed by the native value.
func (e *Engine) Accept(caller common.Address, id uint64, receiver common.Address, attached *big.Int) (err error) {
	finish, err := e.begin(OpAccept)
	if err != nil {
		return err
	}
	defer finish(&err)

	swap, err := e.store.Get(id)
	if err != nil {
		return err
	}
	cfg := swap.Terms()
	if cfg.Allowed != (common.Address{}) && cfg.Allowed != caller {
		return fmt.Errorf("%w: %s is not the allowed counterparty", ErrUnauthorized, caller.Hex())
	}
	if swap.IsZero() || expired(cfg.Expiry, e.now()) {
		return &ExpiryError{Expiry: cfg.Expiry}
	}
	if receiver == (common.Address{}) {
		return fmt.Errorf("%w: zero receiver", ErrInvalidAddress)
	}
	native := cfg.NativeAmount()
	if cfg.OwnerPays() {
		if attached != nil && attached.Sign() != 0 {
			return fmt.Errorf("%w: accept must not attach value, got %s", ErrInvalidValue, attached)
		}
	} else if attachedAmount(attached).Cmp(native) != 0 {
		return fmt.Errorf("%w: attached %s, expected %s", ErrInvalidValue, attachedAmount(attached), native)
	}

	if err := e.store.Remove(id); err != nil {
		return err
	}
	for _, asset := range swap.Biding {
		if err := e.dispatcher.Transfer(asset, swap.Owner, receiver); err != nil {
			return err
		}
	}
	for _, asset := range swap.Asking {
		if err := e.dispatcher.Transfer(asset, caller, swap.Owner); err != nil {
			return err
		}
	}
	if native.Sign() > 0 {
		if cfg.OwnerPays() {
			err = e.state.Transfer(e.Address(), receiver, native)
		} else {
			err = e.state.Transfer(caller, swap.Owner, native)
		}
		if err != nil {
			return err
		}
	}
	e.emit(events.SwapAccepted{ID: id, Owner: swap.Owner, Acceptee: caller})
	return nil
}

// Cancel withdraws swap id and refunds escrowed native value. Once expired, a
// swap can only be canceled when the owner still has value escrowed in it.
func (e *Engine) Cancel(caller common.Address, id uint64) (err error) {
	finish, err := e.begin(OpCancel)
	if err != nil {
		return err
	}
	defer finish(&err)

	swap, err := e.store.Get(id)
	if err != nil {
		return err
	}
	cfg := swap.Terms()
	if swap.IsZero() {
		return &ExpiryError{Expiry: cfg.Expiry}
	}
	if expired(cfg.Expiry, e.now()) && (cfg.Value == 0 || !cfg.OwnerPays()) {
		return &ExpiryError{Expiry: cfg.Expiry}
	}
	if swap.Owner != caller {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}

	if err := e.store.Remove(id); err != nil {
		return err
	}
	if cfg.Value > 0 && cfg.OwnerPays() {
		if err := e.state.Transfer(e.Address(), swap.Owner, cfg.NativeAmount()); err != nil {
			return err
		}
	}
	e.emit(events.SwapCanceled{ID: id, Owner: swap.Owner})
	return nil
}

// Get returns swap id, or the zero record when it does not exist.
func (e *Engine) Get(id uint64) (*Swap, error) {
	if e == nil || e.store == nil {
		return nil, errNilState
	}
	return e.store.Get(id)
}

// Total returns the number of swaps ever created.
func (e *Engine) Total() (uint64, error) {
	if e == nil || e.store == nil {
		return 0, errNilState
	}
	return e.store.Total()
}

// NextID returns the id the next successful Create will assign.
func (e *Engine) NextID() (uint64, error) {
	if e == nil || e.store == nil {
		return 0, errNilState
	}
	return e.store.NextID()
}

// Escrowed returns the native value currently held by the engine.
func (e *Engine) Escrowed() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.Balance(e.Address())
}

func (e *Engine) chargeQuota(owner common.Address, cfg Config) error {
	if !e.quota.Enabled() {
		return nil
	}
	var prev nativecommon.QuotaUsage
	if _, err := e.state.KVGet(quotaKey(owner), &prev); err != nil {
		return err
	}
	escrow := new(big.Int)
	if cfg.OwnerPays() {
		escrow = cfg.NativeAmount()
	}
	next, err := e.quota.Charge(prev, e.quota.EpochAt(e.now()), escrow)
	if err != nil {
		return err
	}
	return e.state.KVPut(quotaKey(owner), &next)
}

func createValue(cfg Config, owner common.Address, attached *big.Int) (*big.Int, error) {
	amount := attachedAmount(attached)
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative attached value %s", ErrInvalidValue, amount)
	}
	if !cfg.OwnerPays() {
		if amount.Sign() != 0 {
			return nil, fmt.Errorf("%w: counterparty pays, create must not attach value", ErrInvalidValue)
		}
		return amount, nil
	}
	expected := cfg.NativeAmount()
	if amount.Cmp(expected) != 0 {
		return nil, fmt.Errorf("%w: attached %s, expected %s", ErrInvalidValue, amount, expected)
	}
	if expected.Sign() > 0 && cfg.Allowed == owner {
		return nil, fmt.Errorf("%w: owner cannot pay itself", ErrInvalidValue)
	}
	return amount, nil
}

func attachedAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func validateAssets(assets []Asset) error {
	for i, asset := range assets {
		if asset.Addr == (common.Address{}) {
			return fmt.Errorf("%w: asset %d has zero contract", ErrInvalidAddress, i)
		}
	}
	return nil
}
