package events

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"swaplace/core/types"
)

const (
	// TypeSwapCreated is emitted when a new swap record is stored.
	TypeSwapCreated = "swaplace.swap.created"
	// TypeSwapAccepted is emitted once a swap has been settled by a counterparty.
	TypeSwapAccepted = "swaplace.swap.accepted"
	// TypeSwapCanceled is emitted when the owner withdraws a swap.
	TypeSwapCanceled = "swaplace.swap.canceled"
)

type SwapCreated struct {
	ID      uint64
	Owner   common.Address
	Allowed common.Address
}

func (SwapCreated) EventType() string { return TypeSwapCreated }

func (e SwapCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapCreated,
		Attributes: map[string]string{
			"id":      strconv.FormatUint(e.ID, 10),
			"owner":   e.Owner.Hex(),
			"allowed": e.Allowed.Hex(),
		},
	}
}

type SwapAccepted struct {
	ID       uint64
	Owner    common.Address
	Acceptee common.Address
}

func (SwapAccepted) EventType() string { return TypeSwapAccepted }

func (e SwapAccepted) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapAccepted,
		Attributes: map[string]string{
			"id":       strconv.FormatUint(e.ID, 10),
			"owner":    e.Owner.Hex(),
			"acceptee": e.Acceptee.Hex(),
		},
	}
}

type SwapCanceled struct {
	ID    uint64
	Owner common.Address
}

func (SwapCanceled) EventType() string { return TypeSwapCanceled }

func (e SwapCanceled) Event() *types.Event {
	return &types.Event{
		Type: TypeSwapCanceled,
		Attributes: map[string]string{
			"id":    strconv.FormatUint(e.ID, 10),
			"owner": e.Owner.Hex(),
		},
	}
}
