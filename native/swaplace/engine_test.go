package swaplace

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"swaplace/core/events"
	"swaplace/core/state"
	nativecommon "swaplace/native/common"
	"swaplace/native/tokens"
	"swaplace/storage"
)

const testNow = int64(1_700_000_000)

var (
	engineAddr = common.HexToAddress("0x00000000000000000000000000000000005a5a5a")
	owner      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	acceptor   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	receiver   = common.HexToAddress("0x0000000000000000000000000000000000000ca7")
	stranger   = common.HexToAddress("0x0000000000000000000000000000000000000bad")
)

type fixture struct {
	t        *testing.T
	state    *state.Manager
	engine   *Engine
	recorder *events.Recorder
	now      int64
	nft      *tokens.ERC721
	coin     *tokens.ERC20
	items    *tokens.ERC1155
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mgr := state.NewManager(storage.NewMemDB())
	f := &fixture{t: t, state: mgr, recorder: &events.Recorder{}, now: testNow}
	f.nft = tokens.NewERC721(tokens.ContractAddress(tokens.StandardERC721, "X"), "X", mgr)
	f.coin = tokens.NewERC20(tokens.ContractAddress(tokens.StandardERC20, "Y"), "Y", mgr)
	f.items = tokens.NewERC1155(tokens.ContractAddress(tokens.StandardERC1155, "Z"), "Z", mgr)

	registry := NewRegistry()
	for _, token := range []tokens.Token{f.nft, f.coin, f.items} {
		if err := registry.Register(token.Address(), token); err != nil {
			t.Fatalf("register %s: %v", token.Name(), err)
		}
	}
	f.engine = NewEngine(engineAddr, registry)
	f.engine.SetState(mgr)
	f.engine.SetEmitter(f.recorder)
	f.engine.SetNowFunc(func() int64 { return f.now })

	f.must(f.nft.Mint(owner, big.NewInt(1)))
	f.must(f.nft.SetApprovalForAll(owner, engineAddr, true))
	f.must(f.coin.Mint(acceptor, big.NewInt(5000)))
	f.must(f.coin.Approve(acceptor, engineAddr, big.NewInt(1000)))
	return f
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("setup: %v", err)
	}
}

func (f *fixture) simpleSwap(allowed common.Address, recipient uint8, value uint64) *Swap {
	return &Swap{
		Owner:  owner,
		Config: EncodeConfig(allowed, uint64(testNow+1_000_000), recipient, value),
		Biding: []Asset{NewAsset(f.nft.Address(), uint256.NewInt(1))},
		Asking: []Asset{NewAsset(f.coin.Address(), uint256.NewInt(1000))},
	}
}

func (f *fixture) nativeBalance(addr common.Address) *big.Int {
	f.t.Helper()
	balance, err := f.state.Balance(addr)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return balance
}

func (f *fixture) coinBalance(addr common.Address) int64 {
	f.t.Helper()
	balance, err := f.coin.BalanceOf(addr)
	if err != nil {
		f.t.Fatalf("coin balance: %v", err)
	}
	return balance.Int64()
}

func (f *fixture) nftOwner() common.Address {
	f.t.Helper()
	holder, err := f.nft.OwnerOf(big.NewInt(1))
	if err != nil {
		f.t.Fatalf("owner of: %v", err)
	}
	return holder
}

func expectExpiry(t *testing.T, err error, expiry uint64) {
	t.Helper()
	var expiryErr *ExpiryError
	if !errors.As(err, &expiryErr) {
		t.Fatalf("expected expiry error, got %v", err)
	}
	if expiryErr.Expiry != expiry {
		t.Fatalf("expected expiry %d, got %d", expiry, expiryErr.Expiry)
	}
	if !errors.Is(err, ErrInvalidExpiry) {
		t.Fatalf("expiry errors must unwrap to ErrInvalidExpiry")
	}
}

func TestSimpleExchange(t *testing.T) {
	f := newFixture(t)
	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	receiverBefore, _ := f.nft.BalanceOf(receiver)

	if err := f.engine.Accept(acceptor, id, receiver, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	receiverAfter, _ := f.nft.BalanceOf(receiver)
	if receiverAfter.Int64() != receiverBefore.Int64()+1 || f.nftOwner() != receiver {
		t.Fatalf("receiver did not get the biding asset")
	}
	if f.coinBalance(owner) != 1000 || f.coinBalance(acceptor) != 4000 {
		t.Fatalf("unexpected coin balances owner=%d acceptor=%d", f.coinBalance(owner), f.coinBalance(acceptor))
	}

	got, err := f.engine.Get(id)
	if err != nil || !got.IsZero() || got.Terms().Expiry != 0 {
		t.Fatalf("accepted swap must read as zero, got %+v err=%v", got, err)
	}

	recorded := f.recorder.Events()
	if len(recorded) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recorded))
	}
	created, ok := recorded[0].(events.SwapCreated)
	if !ok || created.ID != id || created.Owner != owner || created.Allowed != (common.Address{}) {
		t.Fatalf("unexpected created event %+v", recorded[0])
	}
	accepted, ok := recorded[1].(events.SwapAccepted)
	if !ok || accepted.ID != id || accepted.Owner != owner || accepted.Acceptee != acceptor {
		t.Fatalf("unexpected accepted event %+v", recorded[1])
	}
}

func TestQuantityAssetExchange(t *testing.T) {
	f := newFixture(t)
	f.must(f.items.Mint(acceptor, big.NewInt(69), big.NewInt(10)))
	f.must(f.items.SetApprovalForAll(acceptor, engineAddr, true))
	packed, err := EncodeAsset(big.NewInt(69), big.NewInt(4))
	if err != nil {
		t.Fatalf("encode asset: %v", err)
	}
	swap := f.simpleSwap(common.Address{}, 0, 0)
	swap.Asking = []Asset{NewAsset(f.items.Address(), packed)}

	id, err := f.engine.Create(owner, swap, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(acceptor, id, acceptor, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, _ := f.items.BalanceOf(owner, big.NewInt(69))
	if got.Int64() != 4 {
		t.Fatalf("owner should hold 4 items, got %s", got)
	}
}

func TestAcceptIsAtomic(t *testing.T) {
	f := newFixture(t)
	swap := f.simpleSwap(common.Address{}, 0, 0)
	swap.Asking[0] = NewAsset(f.coin.Address(), uint256.NewInt(1001))
	id, err := f.engine.Create(owner, swap, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := f.engine.Get(id)

	err = f.engine.Accept(acceptor, id, receiver, nil)
	if !errors.Is(err, tokens.ErrInsufficientAllowance) {
		t.Fatalf("expected the token error, got %v", err)
	}
	if f.nftOwner() != owner {
		t.Fatalf("biding asset moved despite failure")
	}
	if f.coinBalance(acceptor) != 5000 || f.coinBalance(owner) != 0 {
		t.Fatalf("asking asset moved despite failure")
	}
	after, _ := f.engine.Get(id)
	if !swapsEqual(before, after) {
		t.Fatalf("swap record changed after failed accept")
	}
	if len(f.recorder.Events()) != 1 {
		t.Fatalf("failed accept must not emit events")
	}
}

func TestSingleConsumption(t *testing.T) {
	f := newFixture(t)
	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(acceptor, id, acceptor, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	expectExpiry(t, f.engine.Accept(acceptor, id, acceptor, nil), 0)
	expectExpiry(t, f.engine.Cancel(owner, id), 0)

	id, err = f.engine.Create(owner, &Swap{
		Owner:  owner,
		Config: EncodeConfig(common.Address{}, uint64(testNow+10), 0, 0),
		Biding: []Asset{NewAsset(f.coin.Address(), uint256.NewInt(1))},
		Asking: []Asset{NewAsset(f.coin.Address(), uint256.NewInt(1))},
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Cancel(owner, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	expectExpiry(t, f.engine.Cancel(owner, id), 0)
	expectExpiry(t, f.engine.Accept(acceptor, id, acceptor, nil), 0)
	expectExpiry(t, f.engine.Accept(acceptor, 42, acceptor, nil), 0)
}

func TestAllowlistEnforcement(t *testing.T) {
	f := newFixture(t)
	id, err := f.engine.Create(owner, f.simpleSwap(acceptor, 0, 0), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(stranger, id, stranger, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.engine.Accept(acceptor, id, acceptor, nil); err != nil {
		t.Fatalf("allowed counterparty accept: %v", err)
	}
}

func TestExpiredAccept(t *testing.T) {
	f := newFixture(t)
	swap := f.simpleSwap(common.Address{}, 0, 0)
	expiry := swap.Terms().Expiry
	id, err := f.engine.Create(owner, swap, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f.now = int64(expiry)
	// still acceptable at the expiry second itself
	snapshot := f.state.Snapshot()
	if err := f.engine.Accept(acceptor, id, acceptor, nil); err != nil {
		t.Fatalf("accept at expiry: %v", err)
	}
	if err := f.state.RevertToSnapshot(snapshot); err != nil {
		t.Fatalf("revert: %v", err)
	}
	f.now = int64(expiry) + 1
	expectExpiry(t, f.engine.Accept(acceptor, id, acceptor, nil), expiry)
}

func TestNativeValueForwarding(t *testing.T) {
	f := newFixture(t)
	value := NativeValue(5)
	f.must(f.state.SetBalance(owner, new(big.Int).Mul(value, big.NewInt(2))))

	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 5), value)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if escrow, _ := f.engine.Escrowed(); escrow.Cmp(value) != 0 {
		t.Fatalf("engine should escrow %s, holds %s", value, escrow)
	}
	if err := f.engine.Accept(acceptor, id, receiver, NativeValue(1)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("accept must not attach value for owner-paid swaps, got %v", err)
	}
	if err := f.engine.Accept(acceptor, id, receiver, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := f.nativeBalance(receiver); got.Cmp(value) != 0 {
		t.Fatalf("receiver should gain %s, has %s", value, got)
	}
	if got := f.nativeBalance(owner); got.Cmp(value) != 0 {
		t.Fatalf("owner should be down by exactly %s, has %s", value, got)
	}
	if escrow, _ := f.engine.Escrowed(); escrow.Sign() != 0 {
		t.Fatalf("escrow should be empty, holds %s", escrow)
	}
}

func TestCounterpartyPaysOnAccept(t *testing.T) {
	f := newFixture(t)
	value := NativeValue(2)
	f.must(f.state.SetBalance(acceptor, value))

	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 1, 2), value); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("create must not attach value when the counterparty pays, got %v", err)
	}
	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 1, 2), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(acceptor, id, acceptor, NativeValue(1)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected invalid value, got %v", err)
	}
	if err := f.engine.Accept(acceptor, id, acceptor, value); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got := f.nativeBalance(owner); got.Cmp(value) != 0 {
		t.Fatalf("owner should receive %s, has %s", value, got)
	}
	if got := f.nativeBalance(acceptor); got.Sign() != 0 {
		t.Fatalf("acceptor should have paid everything, has %s", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.must(f.state.SetBalance(owner, NativeValue(10)))

	if _, err := f.engine.Create(stranger, f.simpleSwap(common.Address{}, 0, 0), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	zeroOwner := f.simpleSwap(common.Address{}, 0, 0)
	zeroOwner.Owner = common.Address{}
	if _, err := f.engine.Create(common.Address{}, zeroOwner, nil); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	empty := f.simpleSwap(common.Address{}, 0, 0)
	empty.Asking = nil
	if _, err := f.engine.Create(owner, empty, nil); !errors.Is(err, ErrInvalidAssetsLength) {
		t.Fatalf("expected invalid assets length, got %v", err)
	}
	stale := f.simpleSwap(common.Address{}, 0, 0)
	stale.Config = EncodeConfig(common.Address{}, uint64(testNow-1), 0, 0)
	if _, err := f.engine.Create(owner, stale, nil); err == nil {
		t.Fatalf("expected expiry rejection")
	} else {
		expectExpiry(t, err, uint64(testNow-1))
	}
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 5), NativeValue(4)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected wrong amount rejection, got %v", err)
	}
	if _, err := f.engine.Create(owner, f.simpleSwap(owner, 0, 5), NativeValue(5)); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected self payment rejection, got %v", err)
	}
	if total, _ := f.engine.Total(); total != 0 {
		t.Fatalf("failed creates must not store anything, total=%d", total)
	}
	if got := f.nativeBalance(owner); got.Cmp(NativeValue(10)) != 0 {
		t.Fatalf("failed creates must not move value, owner has %s", got)
	}
}

func TestCreateRevertsWhenEscrowFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 5), NativeValue(5))
	if !errors.Is(err, state.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if next, _ := f.engine.NextID(); next != 1 {
		t.Fatalf("failed create must not consume an id, next=%d", next)
	}
	if got, _ := f.engine.Get(1); !got.IsZero() {
		t.Fatalf("failed create left a record behind")
	}
}

func TestCancellationRefund(t *testing.T) {
	f := newFixture(t)
	value := NativeValue(7)
	f.must(f.state.SetBalance(owner, value))
	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 7), value)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.nativeBalance(owner); got.Sign() != 0 {
		t.Fatalf("owner value should be escrowed, has %s", got)
	}
	if err := f.engine.Cancel(acceptor, id); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := f.engine.Cancel(owner, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.nativeBalance(owner); got.Cmp(value) != 0 {
		t.Fatalf("owner should be refunded %s, has %s", value, got)
	}
	recorded := f.recorder.Events()
	canceled, ok := recorded[len(recorded)-1].(events.SwapCanceled)
	if !ok || canceled.ID != id || canceled.Owner != owner {
		t.Fatalf("unexpected cancel event %+v", recorded[len(recorded)-1])
	}
}

func TestCancelAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.must(f.state.SetBalance(owner, NativeValue(3)))
	f.must(f.state.SetBalance(acceptor, NativeValue(3)))

	escrowed, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 3), NativeValue(3))
	if err != nil {
		t.Fatalf("create escrowed: %v", err)
	}
	plain, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil)
	if err != nil {
		t.Fatalf("create plain: %v", err)
	}
	counterpartyPays, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 1, 3), nil)
	if err != nil {
		t.Fatalf("create counterparty pays: %v", err)
	}

	expiry := f.simpleSwap(common.Address{}, 0, 0).Terms().Expiry
	f.now = int64(expiry) + 1

	expectExpiry(t, f.engine.Cancel(owner, plain), expiry)
	expectExpiry(t, f.engine.Cancel(owner, counterpartyPays), expiry)
	if err := f.engine.Cancel(owner, escrowed); err != nil {
		t.Fatalf("owner must still reclaim escrowed value after expiry: %v", err)
	}
	if got := f.nativeBalance(owner); got.Cmp(NativeValue(3)) != 0 {
		t.Fatalf("expected refund after expiry, owner has %s", got)
	}
}

func TestAcceptRejectsZeroReceiver(t *testing.T) {
	f := newFixture(t)
	id, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(acceptor, id, common.Address{}, nil); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
}

func TestAcceptTransferOrder(t *testing.T) {
	f := newFixture(t)
	log := &callLog{}
	first := common.HexToAddress("0xf1")
	second := common.HexToAddress("0xf2")
	third := common.HexToAddress("0xf3")
	for _, addr := range []common.Address{first, second, third} {
		f.must(f.engine.Registry().Register(addr, &simpleToken{addr: addr, log: log}))
	}
	swap := &Swap{
		Owner:  owner,
		Config: EncodeConfig(common.Address{}, uint64(testNow+100), 0, 0),
		Biding: []Asset{NewAsset(first, uint256.NewInt(1)), NewAsset(second, uint256.NewInt(2))},
		Asking: []Asset{NewAsset(third, uint256.NewInt(3))},
	}
	id, err := f.engine.Create(owner, swap, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.Accept(acceptor, id, receiver, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if len(log.calls) != 3 {
		t.Fatalf("expected 3 transfers, got %d", len(log.calls))
	}
	want := []struct {
		token    common.Address
		from, to common.Address
	}{
		{first, owner, receiver},
		{second, owner, receiver},
		{third, acceptor, owner},
	}
	for i, call := range log.calls {
		if call.token != want[i].token || call.from != want[i].from || call.to != want[i].to || call.operator != engineAddr {
			t.Fatalf("call %d out of order: %+v", i, call)
		}
	}
}

type reentrantToken struct {
	engine    *Engine
	id        uint64
	attacker  common.Address
	acceptErr error
	cancelErr error
	seen      *Swap
}

func (r *reentrantToken) TransferFrom(operator, from, to common.Address, amountOrID *big.Int) error {
	r.seen, _ = r.engine.Get(r.id)
	r.acceptErr = r.engine.Accept(r.attacker, r.id, r.attacker, nil)
	r.cancelErr = r.engine.Cancel(from, r.id)
	return nil
}

func TestReentrantCallsSeeConsumedSwap(t *testing.T) {
	f := newFixture(t)
	evil := &reentrantToken{engine: f.engine, attacker: stranger}
	evilAddr := common.HexToAddress("0xe1")
	f.must(f.engine.Registry().Register(evilAddr, evil))

	swap := f.simpleSwap(common.Address{}, 0, 0)
	swap.Biding = []Asset{NewAsset(evilAddr, uint256.NewInt(1))}
	id, err := f.engine.Create(owner, swap, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	evil.id = id
	if err := f.engine.Accept(acceptor, id, acceptor, nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if evil.seen == nil || !evil.seen.IsZero() {
		t.Fatalf("reentrant read must observe the removed record")
	}
	expectExpiry(t, evil.acceptErr, 0)
	expectExpiry(t, evil.cancelErr, 0)
}

func TestPausedEngineRejectsMutations(t *testing.T) {
	f := newFixture(t)
	pauses := nativecommon.NewPauseSet(ModuleName)
	f.engine.SetPauses(pauses)
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	pauses.Set(ModuleName, false)
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil); err != nil {
		t.Fatalf("create after resume: %v", err)
	}
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) Observe(op string, class ErrorClass) {
	r.outcomes = append(r.outcomes, op+":"+string(class))
}

func TestQuotaAndObserver(t *testing.T) {
	f := newFixture(t)
	observer := &recordingObserver{}
	f.engine.SetObserver(observer)
	f.engine.SetQuota(nativecommon.Quota{MaxSwapsPerEpoch: 1, EpochSeconds: 3600})

	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil); !errors.Is(err, nativecommon.ErrQuotaSwapsExceeded) {
		t.Fatalf("expected quota rejection, got %v", err)
	}
	f.now += 3600
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 0), nil); err != nil {
		t.Fatalf("create in next epoch: %v", err)
	}
	want := []string{"create:", "create:quota", "create:"}
	if len(observer.outcomes) != len(want) {
		t.Fatalf("unexpected outcomes %v", observer.outcomes)
	}
	for i := range want {
		if observer.outcomes[i] != want[i] {
			t.Fatalf("unexpected outcomes %v", observer.outcomes)
		}
	}
}

func TestEscrowQuotaCountsOnlyOwnerPaidValue(t *testing.T) {
	f := newFixture(t)
	f.engine.SetQuota(nativecommon.Quota{MaxEscrowWei: NativeValue(5), EpochSeconds: 3600})
	f.must(f.state.SetBalance(owner, NativeValue(6)))

	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 5), NativeValue(5)); err != nil {
		t.Fatalf("create at cap: %v", err)
	}
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 0, 1), NativeValue(1)); !errors.Is(err, nativecommon.ErrQuotaEscrowExceeded) {
		t.Fatalf("expected escrow quota rejection, got %v", err)
	}
	if got := f.nativeBalance(owner); got.Cmp(NativeValue(1)) != 0 {
		t.Fatalf("rejected create must not move value, owner has %s", got)
	}
	if _, err := f.engine.Create(owner, f.simpleSwap(common.Address{}, 1, 9), nil); err != nil {
		t.Fatalf("counterparty-paid swap must not count against escrow cap: %v", err)
	}
}

func TestEngineWithoutState(t *testing.T) {
	engine := NewEngine(engineAddr, nil)
	if _, err := engine.Create(owner, &Swap{}, nil); !errors.Is(err, errNilState) {
		t.Fatalf("expected nil state error, got %v", err)
	}
	if _, err := engine.Get(1); !errors.Is(err, errNilState) {
		t.Fatalf("expected nil state error, got %v", err)
	}
}
