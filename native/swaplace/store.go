package swaplace

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type kvState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

type assetRecord struct {
	Addr       common.Address
	AmountOrID [32]byte
}

type swapRecord struct {
	Owner  common.Address
	Config [32]byte
	Biding []assetRecord
	Asking []assetRecord
}

// Store maps swap ids onto records and owns the id counter.
type Store struct {
	state kvState
}

// NewStore binds a Store to the given state.
func NewStore(state kvState) *Store {
	return &Store{state: state}
}

// Total returns the number of swaps ever created.
func (s *Store) Total() (uint64, error) {
	if s == nil || s.state == nil {
		return 0, errNilState
	}
	var total uint64
	if _, err := s.state.KVGet(swapTotalKey, &total); err != nil {
		return 0, fmt.Errorf("swaplace: load total: %w", err)
	}
	return total, nil
}

// NextID returns the id the next Insert will assign.
func (s *Store) NextID() (uint64, error) {
	total, err := s.Total()
	if err != nil {
		return 0, err
	}
	return total + 1, nil
}

// Insert persists swap under the next id and advances the counter.
func (s *Store) Insert(swap *Swap) (uint64, error) {
	if swap == nil {
		return 0, fmt.Errorf("swaplace: nil swap")
	}
	id, err := s.NextID()
	if err != nil {
		return 0, err
	}
	if err := s.state.KVPut(swapRecordKey(id), toRecord(swap)); err != nil {
		return 0, fmt.Errorf("swaplace: store swap %d: %w", id, err)
	}
	if err := s.state.KVPut(swapTotalKey, id); err != nil {
		return 0, fmt.Errorf("swaplace: store total: %w", err)
	}
	return id, nil
}

// Get returns the record stored under id, or the zero record when absent.
func (s *Store) Get(id uint64) (*Swap, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if id == 0 {
		return zeroSwap(), nil
	}
	var record swapRecord
	ok, err := s.state.KVGet(swapRecordKey(id), &record)
	if err != nil {
		return nil, fmt.Errorf("swaplace: load swap %d: %w", id, err)
	}
	if !ok {
		return zeroSwap(), nil
	}
	return fromRecord(&record), nil
}

// Remove deletes the record stored under id. Removing an absent id is a no-op.
func (s *Store) Remove(id uint64) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	if id == 0 {
		return nil
	}
	return s.state.KVDelete(swapRecordKey(id))
}

func toRecord(swap *Swap) *swapRecord {
	record := &swapRecord{
		Owner:  swap.Owner,
		Biding: toAssetRecords(swap.Biding),
		Asking: toAssetRecords(swap.Asking),
	}
	if swap.Config != nil {
		record.Config = swap.Config.Bytes32()
	}
	return record
}

func toAssetRecords(assets []Asset) []assetRecord {
	out := make([]assetRecord, len(assets))
	for i, asset := range assets {
		out[i].Addr = asset.Addr
		if asset.AmountOrID != nil {
			out[i].AmountOrID = asset.AmountOrID.Bytes32()
		}
	}
	return out
}

func fromRecord(record *swapRecord) *Swap {
	return &Swap{
		Owner:  record.Owner,
		Config: new(uint256.Int).SetBytes32(record.Config[:]),
		Biding: fromAssetRecords(record.Biding),
		Asking: fromAssetRecords(record.Asking),
	}
}

func fromAssetRecords(records []assetRecord) []Asset {
	out := make([]Asset, len(records))
	for i, record := range records {
		out[i] = Asset{Addr: record.Addr, AmountOrID: new(uint256.Int).SetBytes32(record.AmountOrID[:])}
	}
	return out
}
