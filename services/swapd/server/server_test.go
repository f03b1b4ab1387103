package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	swcrypto "swaplace/crypto"
	"swaplace/gateway/auth"
	"swaplace/gateway/middleware"
	"swaplace/native/tokens"
	"swaplace/services/swapd/api"
	"swaplace/services/swapd/client"
	"swaplace/services/swapd/config"
	"swaplace/services/swapd/ledger"
	"swaplace/storage"
)

type harness struct {
	ledger *ledger.Ledger
	server *httptest.Server
	alice  *client.Client
	bob    *client.Client
	eve    *client.Client
	anon   *client.Client
	art    common.Address
	usd    common.Address
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		RateLimitWrite: {RatePerSecond: 100, Burst: 100},
	}, nil)
	return newHarnessWith(t, auth.NewAuthenticator(time.Minute, 128, nil, nil), limiter)
}

func newHarnessWith(t *testing.T, authenticator *auth.Authenticator, limiter *middleware.RateLimiter) *harness {
	t.Helper()
	aliceKey, err := swcrypto.GeneratePrivateKey()
	require.NoError(t, err)
	bobKey, err := swcrypto.GeneratePrivateKey()
	require.NoError(t, err)
	eveKey, err := swcrypto.GeneratePrivateKey()
	require.NoError(t, err)

	tokenCfg := []config.TokenConfig{{Name: "art", Standard: "erc721"}, {Name: "usd", Standard: "erc20"}}
	l, err := ledger.New(storage.NewMemDB(), ledger.Options{
		EngineAddress: config.DefaultEngineAddress,
		Tokens:        tokenCfg,
	})
	require.NoError(t, err)
	_, err = l.ApplyGenesis(config.GenesisConfig{
		Native:   []config.NativeAllocation{{Address: aliceKey.Address().Hex(), Amount: "3000000000000000000"}},
		Balances: []config.BalanceAllocation{{Token: "usd", Holder: bobKey.Address().Hex(), Amount: "1000"}},
		Items:    []config.ItemAllocation{{Token: "art", Holder: aliceKey.Address().Hex(), IDs: []string{"1"}}},
	})
	require.NoError(t, err)

	srv, err := New(Config{ListenAddress: "127.0.0.1:0"}, l, authenticator, limiter, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &harness{
		ledger: l,
		server: ts,
		alice:  client.New(ts.URL, aliceKey, client.WithClock(steppingClock())),
		bob:    client.New(ts.URL, bobKey, client.WithClock(steppingClock())),
		eve:    client.New(ts.URL, eveKey, client.WithClock(steppingClock())),
		anon:   client.New(ts.URL, nil),
		art:    tokens.ContractAddress(tokens.StandardERC721, "art"),
		usd:    tokens.ContractAddress(tokens.StandardERC20, "usd"),
	}
}

// steppingClock signs every request one second earlier than the previous
// one so identical calls do not collide in the replay cache.
func steppingClock() func() time.Time {
	var step time.Duration
	return func() time.Time {
		step += time.Second
		return time.Now().Add(-step)
	}
}

func (h *harness) createSwap(t *testing.T, allowed string, value uint64, attached string) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.alice.SetApprovalForAll(ctx, h.art, api.ApprovalForAllRequest{Approved: true}))
	id, err := h.alice.CreateSwap(ctx, api.CreateSwapRequest{
		Swap: api.Swap{
			Allowed: allowed,
			Expiry:  uint64(time.Now().Add(time.Hour).Unix()),
			Value:   value,
			Biding:  []api.Asset{{Addr: h.art.Hex(), AmountOrID: "1"}},
			Asking:  []api.Asset{{Addr: h.usd.Hex(), AmountOrID: "400"}},
		},
		Attached: attached,
	})
	require.NoError(t, err)
	return id
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr), "expected API error, got %v", err)
	require.Equal(t, status, apiErr.Status, apiErr.Error())
}

func TestSwapLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := h.createSwap(t, "", 1_000_000, "1000000000000000000")
	require.Equal(t, uint64(1), id)

	swap, err := h.anon.Swap(ctx, id)
	require.NoError(t, err)
	require.Equal(t, h.alice.Address().Hex(), swap.Owner)
	require.Equal(t, uint64(1_000_000), swap.Value)

	engine, err := h.anon.Engine(ctx)
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", engine.Escrowed)
	require.Len(t, engine.Tokens, 2)

	require.NoError(t, h.bob.Approve(ctx, h.usd, api.ApproveRequest{AmountOrID: "400"}))
	require.NoError(t, h.bob.AcceptSwap(ctx, id, api.AcceptSwapRequest{}))

	art, err := h.anon.TokenBalance(ctx, h.art, h.bob.Address(), nil)
	require.NoError(t, err)
	require.Equal(t, "1", art.Balance)
	usd, err := h.anon.TokenBalance(ctx, h.usd, h.alice.Address(), nil)
	require.NoError(t, err)
	require.Equal(t, "400", usd.Balance)
	account, err := h.anon.Account(ctx, h.bob.Address())
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", account.Balance)

	consumed, err := h.anon.Swap(ctx, id)
	require.NoError(t, err)
	require.Equal(t, (common.Address{}).Hex(), consumed.Owner)

	requireStatus(t, h.bob.AcceptSwap(ctx, id, api.AcceptSwapRequest{}), http.StatusConflict)

	total, err := h.anon.Total(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), total.Total)
	require.Equal(t, uint64(2), total.NextID)
}

func TestTokenOwnerEndpoint(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner, err := h.anon.OwnerOf(ctx, h.art, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, h.alice.Address().Hex(), owner.Owner)
	require.Equal(t, "1", owner.ID)

	_, err = h.anon.OwnerOf(ctx, h.art, big.NewInt(99))
	requireStatus(t, err, http.StatusNotFound)
	_, err = h.anon.OwnerOf(ctx, h.usd, big.NewInt(1))
	requireStatus(t, err, http.StatusBadRequest)

	resp, err := http.Get(h.server.URL + "/v1/tokens/" + h.art.Hex() + "/owner/0b1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	id := h.createSwap(t, h.bob.Address().Hex(), 0, "")
	requireStatus(t, h.eve.AcceptSwap(ctx, id, api.AcceptSwapRequest{}), http.StatusForbidden)
	requireStatus(t, h.eve.CancelSwap(ctx, id), http.StatusForbidden)

	// Bob is allowed but never approved the engine for usd.
	requireStatus(t, h.bob.AcceptSwap(ctx, id, api.AcceptSwapRequest{}), http.StatusUnprocessableEntity)

	_, err := h.alice.CreateSwap(ctx, api.CreateSwapRequest{Swap: api.Swap{Expiry: uint64(time.Now().Add(time.Hour).Unix())}})
	requireStatus(t, err, http.StatusBadRequest)

	requireStatus(t, h.bob.Approve(ctx, common.HexToAddress("0x01"), api.ApproveRequest{AmountOrID: "1"}), http.StatusNotFound)

	h.ledger.SetPaused(true)
	requireStatus(t, h.alice.CancelSwap(ctx, id), http.StatusServiceUnavailable)
	h.ledger.SetPaused(false)
	require.NoError(t, h.alice.CancelSwap(ctx, id))

	_, err = h.anon.CreateSwap(ctx, api.CreateSwapRequest{})
	require.ErrorIs(t, err, client.ErrNoKey)
}

func TestMutationsRequireSignature(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.server.URL+"/v1/swaps", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	key, err := swcrypto.GeneratePrivateKey()
	require.NoError(t, err)
	body := []byte(`{}`)
	ts := time.Now().Unix()
	sig, err := swcrypto.SignRequest(key, http.MethodPost, "/v1/swaps/1/cancel", ts, body)
	require.NoError(t, err)
	send := func() int {
		req, err := http.NewRequest(http.MethodPost, h.server.URL+"/v1/swaps/1/cancel", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(swcrypto.HeaderAddress, key.Address().Hex())
		req.Header.Set(swcrypto.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(swcrypto.HeaderSignature, sig)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return resp.StatusCode
	}
	// The first attempt reaches the engine and fails on the missing swap.
	require.Equal(t, http.StatusConflict, send())
	require.Equal(t, http.StatusUnauthorized, send())
}

func TestCodecEndpoints(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	word, err := h.anon.EncodeConfig(ctx, api.ConfigWord{Allowed: h.bob.Address().Hex(), Expiry: 99, Recipient: 3, Value: 7})
	require.NoError(t, err)
	decoded, err := h.anon.DecodeConfig(ctx, word.Config)
	require.NoError(t, err)
	require.Equal(t, h.bob.Address().Hex(), decoded.Allowed)
	require.Equal(t, uint64(99), decoded.Expiry)
	require.Equal(t, uint8(3), decoded.Recipient)
	require.Equal(t, uint64(7), decoded.Value)
	require.Equal(t, new(big.Int).Mul(big.NewInt(7), big.NewInt(1_000_000_000_000)).String(), decoded.NativeWei)

	asset, err := h.anon.EncodeAsset(ctx, "5", "12")
	require.NoError(t, err)
	back, err := h.anon.DecodeAsset(ctx, asset.AmountOrID)
	require.NoError(t, err)
	require.True(t, back.Packed)
	require.Equal(t, "5", back.ID)
	require.Equal(t, "12", back.Quantity)

	plain, err := h.anon.DecodeAsset(ctx, "42")
	require.NoError(t, err)
	require.False(t, plain.Packed)

	_, err = h.anon.EncodeAsset(ctx, "-1", "1")
	requireStatus(t, err, http.StatusBadRequest)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.anon.Health(context.Background()))

	resp, err := http.Get(h.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSaturatedReplayCacheReturnsUnavailable(t *testing.T) {
	h := newHarnessWith(t, auth.NewAuthenticator(time.Minute, 1, nil, nil), nil)
	ctx := context.Background()

	require.NoError(t, h.alice.SetApprovalForAll(ctx, h.art, api.ApprovalForAllRequest{Approved: true}))
	err := h.bob.Approve(ctx, h.usd, api.ApproveRequest{AmountOrID: "5"})
	requireStatus(t, err, http.StatusServiceUnavailable)

	var apiErr *client.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, "unavailable", apiErr.Class)
}

func TestThrottledWriteKeepsSignatureUsable(t *testing.T) {
	bobKey, err := swcrypto.GeneratePrivateKey()
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(time.Minute, 128, nil, nil)
	l, err := ledger.New(storage.NewMemDB(), ledger.Options{
		EngineAddress: config.DefaultEngineAddress,
		Tokens:        []config.TokenConfig{{Name: "usd", Standard: "erc20"}},
	})
	require.NoError(t, err)

	// Every write costs more than the burst, so the throttled server rejects all of them.
	throttling := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		RateLimitWrite: {RatePerSecond: 1, Burst: 1, DefaultTokens: 5},
	}, nil)
	blocked, err := New(Config{}, l, authenticator, throttling, nil)
	require.NoError(t, err)
	open, err := New(Config{}, l, authenticator, nil, nil)
	require.NoError(t, err)

	usd := tokens.ContractAddress(tokens.StandardERC20, "usd")
	path := "/v1/tokens/" + usd.Hex() + "/approve"
	body := []byte(`{"amount_or_id":"5"}`)
	ts := time.Now().Unix()
	sig, err := swcrypto.SignRequest(bobKey, http.MethodPost, path, ts, body)
	require.NoError(t, err)

	send := func(h http.Handler) int {
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
		req.Header.Set(swcrypto.HeaderAddress, bobKey.Address().Hex())
		req.Header.Set(swcrypto.HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(swcrypto.HeaderSignature, sig)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusTooManyRequests, send(blocked.Handler()))
	require.Less(t, send(open.Handler()), 300)
	require.Equal(t, http.StatusUnauthorized, send(open.Handler()))
}
