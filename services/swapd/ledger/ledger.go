package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"swaplace/core/events"
	"swaplace/core/state"
	nativecommon "swaplace/native/common"
	"swaplace/native/swaplace"
	"swaplace/native/tokens"
	"swaplace/services/swapd/config"
	"swaplace/storage"
)

var (
	ErrUnknownToken    = errors.New("ledger: unknown token")
	ErrUnsupportedCall = errors.New("ledger: operation not supported by token standard")
	genesisMarkerKey   = []byte("swapd/genesis/applied")
)

// EscrowGauge receives the engine's escrowed balance after every commit.
type EscrowGauge interface {
	SetEscrowed(amount *big.Int)
}

// Options configures a Ledger.
type Options struct {
	EngineAddress common.Address
	Tokens        []config.TokenConfig
	Paused        bool
	Quota         nativecommon.Quota
	Emitter       events.Emitter
	Observer      swaplace.Observer
	Gauge         EscrowGauge
	Now           func() time.Time
	Logger        *slog.Logger
}

// TokenInfo describes a registered token contract.
type TokenInfo struct {
	Name     string
	Standard string
	Address  common.Address
}

// Ledger is the execution environment for the swap engine. It serializes
// mutations, wraps each in a journal that is committed on success and
// discarded on failure, and releases events only once state is durable.
type Ledger struct {
	mu      sync.RWMutex
	state   *state.Manager
	engine  *swaplace.Engine
	pauses  *nativecommon.PauseSet
	pending *events.Recorder
	emitter events.Emitter
	gauge   EscrowGauge
	logger  *slog.Logger
	tokens  map[common.Address]tokens.Token
}

// New builds a ledger over db.
func New(db storage.Database, opts Options) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: database required")
	}
	if opts.EngineAddress == (common.Address{}) {
		return nil, fmt.Errorf("ledger: engine address required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	l := &Ledger{
		state:   state.NewManager(db),
		pauses:  nativecommon.NewPauseSet(),
		pending: &events.Recorder{},
		emitter: emitter,
		gauge:   opts.Gauge,
		logger:  logger,
		tokens:  make(map[common.Address]tokens.Token, len(opts.Tokens)),
	}
	registry := swaplace.NewRegistry()
	for _, cfg := range opts.Tokens {
		addr := cfg.ResolvedAddress()
		token, err := tokens.New(cfg.Standard, addr, cfg.Name, l.state)
		if err != nil {
			return nil, fmt.Errorf("ledger: token %q: %w", cfg.Name, err)
		}
		if err := registry.Register(addr, token); err != nil {
			return nil, fmt.Errorf("ledger: register %q: %w", cfg.Name, err)
		}
		l.tokens[addr] = token
	}

	l.pauses.Set(swaplace.ModuleName, opts.Paused)
	l.engine = swaplace.NewEngine(opts.EngineAddress, registry)
	l.engine.SetState(l.state)
	l.engine.SetEmitter(l.pending)
	l.engine.SetNowFunc(func() int64 { return now().Unix() })
	l.engine.SetPauses(l.pauses)
	l.engine.SetQuota(opts.Quota)
	if opts.Observer != nil {
		l.engine.SetObserver(opts.Observer)
	}
	return l, nil
}

// EngineAddress returns the escrow and operator account.
func (l *Ledger) EngineAddress() common.Address { return l.engine.Address() }

// SetPaused toggles the engine's pause guard.
func (l *Ledger) SetPaused(paused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pauses.Set(swaplace.ModuleName, paused)
}

// Paused reports whether the engine rejects mutations.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pauses.IsPaused(swaplace.ModuleName)
}

// Tokens lists registered contracts ordered by name.
func (l *Ledger) Tokens() []TokenInfo {
	out := make([]TokenInfo, 0, len(l.tokens))
	for addr, token := range l.tokens {
		out = append(out, TokenInfo{Name: token.Name(), Standard: token.Standard(), Address: addr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// execute runs fn under the write lock and commits its changes, or discards
// them when fn fails.
func (l *Ledger) execute(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.pending.Reset()

	if err := fn(); err != nil {
		l.state.Discard()
		return err
	}
	if err := l.state.Commit(); err != nil {
		l.state.Discard()
		return err
	}
	for _, evt := range l.pending.Events() {
		l.emitter.Emit(evt)
	}
	if l.gauge != nil {
		if escrowed, err := l.engine.Escrowed(); err == nil {
			l.gauge.SetEscrowed(escrowed)
		}
	}
	return nil
}

func (l *Ledger) view(fn func() error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn()
}

// ApplyGenesis credits the configured allocations once. It reports whether
// the allocations were applied by this call.
func (l *Ledger) ApplyGenesis(genesis config.GenesisConfig) (bool, error) {
	applied := false
	err := l.execute(func() error {
		var done bool
		ok, err := l.state.KVGet(genesisMarkerKey, &done)
		if err != nil {
			return err
		}
		if ok && done {
			return nil
		}
		if err := l.applyGenesis(genesis); err != nil {
			return err
		}
		applied = true
		return l.state.KVPut(genesisMarkerKey, true)
	})
	if err != nil {
		return false, fmt.Errorf("ledger: genesis: %w", err)
	}
	if applied {
		l.logger.Info("genesis applied",
			slog.Int("native", len(genesis.Native)),
			slog.Int("balances", len(genesis.Balances)),
			slog.Int("items", len(genesis.Items)))
	}
	return applied, nil
}

func (l *Ledger) applyGenesis(genesis config.GenesisConfig) error {
	for _, alloc := range genesis.Native {
		amount, err := config.ParseAmount(alloc.Amount)
		if err != nil {
			return err
		}
		if err := l.state.AddBalance(common.HexToAddress(alloc.Address), amount); err != nil {
			return err
		}
	}
	for _, alloc := range genesis.Balances {
		token, err := l.tokenByName(alloc.Token)
		if err != nil {
			return err
		}
		amount, err := config.ParseAmount(alloc.Amount)
		if err != nil {
			return err
		}
		holder := common.HexToAddress(alloc.Holder)
		switch t := token.(type) {
		case *tokens.ERC20:
			err = t.Mint(holder, amount)
		case *tokens.ERC1155:
			id, perr := config.ParseAmount(alloc.ID)
			if perr != nil {
				return perr
			}
			err = t.Mint(holder, id, amount)
		default:
			err = fmt.Errorf("%w: mint balance on %s", ErrUnsupportedCall, token.Standard())
		}
		if err != nil {
			return err
		}
	}
	for _, alloc := range genesis.Items {
		token, err := l.tokenByName(alloc.Token)
		if err != nil {
			return err
		}
		nft, ok := token.(*tokens.ERC721)
		if !ok {
			return fmt.Errorf("%w: mint item on %s", ErrUnsupportedCall, token.Standard())
		}
		for _, raw := range alloc.IDs {
			id, err := config.ParseAmount(raw)
			if err != nil {
				return err
			}
			if err := nft.Mint(common.HexToAddress(alloc.Holder), id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (l *Ledger) tokenByName(name string) (tokens.Token, error) {
	name = strings.TrimSpace(name)
	for _, token := range l.tokens {
		if token.Name() == name {
			return token, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownToken, name)
}

func (l *Ledger) token(addr common.Address) (tokens.Token, error) {
	token, ok := l.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return token, nil
}

// CreateSwap runs Engine.Create and commits on success.
func (l *Ledger) CreateSwap(caller common.Address, swap *swaplace.Swap, attached *big.Int) (uint64, error) {
	var id uint64
	err := l.execute(func() error {
		var err error
		id, err = l.engine.Create(caller, swap, attached)
		return err
	})
	return id, err
}

// AcceptSwap runs Engine.Accept and commits on success.
func (l *Ledger) AcceptSwap(caller common.Address, id uint64, receiver common.Address, attached *big.Int) error {
	return l.execute(func() error {
		return l.engine.Accept(caller, id, receiver, attached)
	})
}

// CancelSwap runs Engine.Cancel and commits on success.
func (l *Ledger) CancelSwap(caller common.Address, id uint64) error {
	return l.execute(func() error {
		return l.engine.Cancel(caller, id)
	})
}

func (l *Ledger) Swap(id uint64) (*swaplace.Swap, error) {
	var swap *swaplace.Swap
	err := l.view(func() error {
		var err error
		swap, err = l.engine.Get(id)
		return err
	})
	return swap, err
}

func (l *Ledger) Total() (uint64, error) {
	var total uint64
	err := l.view(func() error {
		var err error
		total, err = l.engine.Total()
		return err
	})
	return total, err
}

func (l *Ledger) NextID() (uint64, error) {
	var next uint64
	err := l.view(func() error {
		var err error
		next, err = l.engine.NextID()
		return err
	})
	return next, err
}

// Escrowed returns the native value held by the engine.
func (l *Ledger) Escrowed() (*big.Int, error) {
	var amount *big.Int
	err := l.view(func() error {
		var err error
		amount, err = l.engine.Escrowed()
		return err
	})
	return amount, err
}

// Balance returns the native balance of addr.
func (l *Ledger) Balance(addr common.Address) (*big.Int, error) {
	var amount *big.Int
	err := l.view(func() error {
		var err error
		amount, err = l.state.Balance(addr)
		return err
	})
	return amount, err
}

// TokenBalance returns holder's balance on tokenAddr. id selects the ERC1155
// token id and is ignored by other standards.
func (l *Ledger) TokenBalance(tokenAddr, holder common.Address, id *big.Int) (*big.Int, error) {
	var amount *big.Int
	err := l.view(func() error {
		token, err := l.token(tokenAddr)
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case *tokens.ERC20:
			amount, err = t.BalanceOf(holder)
		case *tokens.ERC721:
			amount, err = t.BalanceOf(holder)
		case *tokens.ERC1155:
			if id == nil {
				id = new(big.Int)
			}
			amount, err = t.BalanceOf(holder, id)
		default:
			err = fmt.Errorf("%w: balance on %s", ErrUnsupportedCall, token.Standard())
		}
		return err
	})
	return amount, err
}

// OwnerOf returns the holder of an ERC721 id.
func (l *Ledger) OwnerOf(tokenAddr common.Address, id *big.Int) (common.Address, error) {
	var owner common.Address
	err := l.view(func() error {
		token, err := l.token(tokenAddr)
		if err != nil {
			return err
		}
		nft, ok := token.(*tokens.ERC721)
		if !ok {
			return fmt.Errorf("%w: owner of on %s", ErrUnsupportedCall, token.Standard())
		}
		owner, err = nft.OwnerOf(id)
		return err
	})
	return owner, err
}

// Approve grants spender an ERC20 allowance or a single ERC721 id on behalf
// of caller.
func (l *Ledger) Approve(caller, tokenAddr, spender common.Address, amountOrID *big.Int) error {
	return l.execute(func() error {
		token, err := l.token(tokenAddr)
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case *tokens.ERC20:
			return t.Approve(caller, spender, amountOrID)
		case *tokens.ERC721:
			return t.Approve(caller, spender, amountOrID)
		default:
			return fmt.Errorf("%w: approve on %s", ErrUnsupportedCall, token.Standard())
		}
	})
}

// SetApprovalForAll toggles operator rights over all of caller's ERC721 or
// ERC1155 holdings.
func (l *Ledger) SetApprovalForAll(caller, tokenAddr, operator common.Address, approved bool) error {
	return l.execute(func() error {
		token, err := l.token(tokenAddr)
		if err != nil {
			return err
		}
		switch t := token.(type) {
		case *tokens.ERC721:
			return t.SetApprovalForAll(caller, operator, approved)
		case *tokens.ERC1155:
			return t.SetApprovalForAll(caller, operator, approved)
		default:
			return fmt.Errorf("%w: approval for all on %s", ErrUnsupportedCall, token.Standard())
		}
	})
}
