// Package client is a Go client for the swapd HTTP API. Mutating calls are
// signed with the caller's secp256k1 key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	swcrypto "swaplace/crypto"
	"swaplace/gateway/auth"
	"swaplace/services/swapd/api"
)

var ErrNoKey = errors.New("client: signing key required")

// Error is a non-2xx response from swapd.
type Error struct {
	Status  int
	Message string
	Class   string
}

func (e *Error) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("swapd: %d %s: %s", e.Status, e.Class, e.Message)
	}
	return fmt.Sprintf("swapd: %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
	key     *swcrypto.PrivateKey
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a client for baseURL. key may be nil for read-only use.
func New(baseURL string, key *swcrypto.PrivateKey, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		key:     key,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the signing account, or the zero address without a key.
func (c *Client) Address() common.Address {
	if c.key == nil {
		return common.Address{}
	}
	return c.key.Address()
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, false, nil)
}

func (c *Client) Engine(ctx context.Context) (api.EngineResponse, error) {
	var out api.EngineResponse
	err := c.do(ctx, http.MethodGet, "/v1/engine", nil, false, &out)
	return out, err
}

func (c *Client) Total(ctx context.Context) (api.TotalResponse, error) {
	var out api.TotalResponse
	err := c.do(ctx, http.MethodGet, "/v1/swaps/total", nil, false, &out)
	return out, err
}

func (c *Client) Swap(ctx context.Context, id uint64) (api.Swap, error) {
	var out api.Swap
	err := c.do(ctx, http.MethodGet, "/v1/swaps/"+strconv.FormatUint(id, 10), nil, false, &out)
	return out, err
}

func (c *Client) Account(ctx context.Context, addr common.Address) (api.AccountResponse, error) {
	var out api.AccountResponse
	err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.Hex(), nil, false, &out)
	return out, err
}

// TokenBalance queries holder's balance. id is only meaningful for ERC1155.
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address, id *big.Int) (api.TokenBalanceResponse, error) {
	path := fmt.Sprintf("/v1/tokens/%s/balance/%s", token.Hex(), holder.Hex())
	if id != nil {
		path += "?" + url.Values{"id": {id.String()}}.Encode()
	}
	var out api.TokenBalanceResponse
	err := c.do(ctx, http.MethodGet, path, nil, false, &out)
	return out, err
}

// OwnerOf returns the holder of an ERC721 id.
func (c *Client) OwnerOf(ctx context.Context, token common.Address, id *big.Int) (api.TokenOwnerResponse, error) {
	var out api.TokenOwnerResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/tokens/%s/owner/%s", token.Hex(), id.String()), nil, false, &out)
	return out, err
}

func (c *Client) EncodeConfig(ctx context.Context, word api.ConfigWord) (api.ConfigWord, error) {
	var out api.ConfigWord
	err := c.do(ctx, http.MethodPost, "/v1/codec/config/encode", word, false, &out)
	return out, err
}

func (c *Client) DecodeConfig(ctx context.Context, config string) (api.ConfigWord, error) {
	var out api.ConfigWord
	err := c.do(ctx, http.MethodPost, "/v1/codec/config/decode", api.ConfigWord{Config: config}, false, &out)
	return out, err
}

func (c *Client) EncodeAsset(ctx context.Context, id, quantity string) (api.AssetWord, error) {
	var out api.AssetWord
	err := c.do(ctx, http.MethodPost, "/v1/codec/asset/encode", api.AssetWord{ID: id, Quantity: quantity}, false, &out)
	return out, err
}

func (c *Client) DecodeAsset(ctx context.Context, amountOrID string) (api.AssetWord, error) {
	var out api.AssetWord
	err := c.do(ctx, http.MethodPost, "/v1/codec/asset/decode", api.AssetWord{AmountOrID: amountOrID}, false, &out)
	return out, err
}

func (c *Client) CreateSwap(ctx context.Context, req api.CreateSwapRequest) (uint64, error) {
	var out api.CreateSwapResponse
	if err := c.do(ctx, http.MethodPost, "/v1/swaps", req, true, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) AcceptSwap(ctx context.Context, id uint64, req api.AcceptSwapRequest) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/swaps/%d/accept", id), req, true, nil)
}

func (c *Client) CancelSwap(ctx context.Context, id uint64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/swaps/%d/cancel", id), struct{}{}, true, nil)
}

func (c *Client) Approve(ctx context.Context, token common.Address, req api.ApproveRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/tokens/"+token.Hex()+"/approve", req, true, nil)
}

func (c *Client) SetApprovalForAll(ctx context.Context, token common.Address, req api.ApprovalForAllRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/tokens/"+token.Hex()+"/approval-for-all", req, true, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, signed bool, out any) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = encoded
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signed {
		if err := c.sign(req, body); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(raw, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = strings.TrimSpace(string(raw))
		}
		return &Error{Status: resp.StatusCode, Message: apiErr.Error, Class: apiErr.Class}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func (c *Client) sign(req *http.Request, body []byte) error {
	if c.key == nil {
		return ErrNoKey
	}
	ts := c.now().Unix()
	sig, err := swcrypto.SignRequest(c.key, req.Method, auth.CanonicalRequestPath(req), ts, body)
	if err != nil {
		return fmt.Errorf("client: sign request: %w", err)
	}
	req.Header.Set(swcrypto.HeaderAddress, c.key.Address().Hex())
	req.Header.Set(swcrypto.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(swcrypto.HeaderSignature, sig)
	return nil
}
