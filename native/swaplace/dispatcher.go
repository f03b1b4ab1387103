package swaplace

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// SimpleTransferer is implemented by contracts that move a plain amount or a
// single token id: fungible balances and single-owner ids alike.
type SimpleTransferer interface {
	TransferFrom(operator, from, to common.Address, amountOrID *big.Int) error
}

// QuantityTransferer is implemented by contracts holding quantities per id.
type QuantityTransferer interface {
	SafeTransferFrom(operator, from, to common.Address, id, quantity *big.Int, data []byte) error
}

// Registry resolves token contract addresses to their implementations.
type Registry struct {
	mu        sync.RWMutex
	contracts map[common.Address]interface{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[common.Address]interface{})}
}

// Register binds contract to addr. The contract must implement at least one
// of SimpleTransferer or QuantityTransferer.
func (r *Registry) Register(addr common.Address, contract interface{}) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: zero contract address", ErrInvalidAddress)
	}
	_, simple := contract.(SimpleTransferer)
	_, quantity := contract.(QuantityTransferer)
	if !simple && !quantity {
		return fmt.Errorf("%w: %s implements no transfer entry point", ErrUnsupportedTransfer, addr.Hex())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[addr] = contract
	return nil
}

// Lookup returns the contract registered under addr.
func (r *Registry) Lookup(addr common.Address) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	contract, ok := r.contracts[addr]
	return contract, ok
}

// Dispatcher moves single assets on behalf of operator.
type Dispatcher struct {
	registry *Registry
	operator common.Address
}

// NewDispatcher builds a Dispatcher that presents operator to every token call.
func NewDispatcher(registry *Registry, operator common.Address) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{registry: registry, operator: operator}
}

// Operator returns the address presented to token contracts.
func (d *Dispatcher) Operator() common.Address { return d.operator }

// Transfer moves asset from one address to another. Sentinel-packed assets go
// through the quantity entry point with an empty payload; everything else goes
// through the simple one. Token errors are returned as is.
func (d *Dispatcher) Transfer(asset Asset, from, to common.Address) error {
	contract, ok := d.registry.Lookup(asset.Addr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContract, asset.Addr.Hex())
	}
	if asset.IsQuantityPacked() {
		token, ok := contract.(QuantityTransferer)
		if !ok {
			return fmt.Errorf("%w: %s has no quantity transfer", ErrUnsupportedTransfer, asset.Addr.Hex())
		}
		id, quantity := DecodeAsset(asset.AmountOrID)
		return token.SafeTransferFrom(d.operator, from, to, id.ToBig(), quantity.ToBig(), []byte{})
	}
	token, ok := contract.(SimpleTransferer)
	if !ok {
		return fmt.Errorf("%w: %s has no simple transfer", ErrUnsupportedTransfer, asset.Addr.Hex())
	}
	amount := new(big.Int)
	if asset.AmountOrID != nil {
		amount = asset.AmountOrID.ToBig()
	}
	return token.TransferFrom(d.operator, from, to, amount)
}
