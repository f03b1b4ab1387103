package auth

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	swcrypto "swaplace/crypto"
)

const (
	// MaxBodyForSignature is the maximum body size we will hash when authenticating.
	MaxBodyForSignature int = 1 << 20 // 1 MiB

	maxAllowedTimestampSkew  = 5 * time.Minute
	defaultTimestampSkew     = 2 * time.Minute
	defaultReplayCapacity    = 65536
	maxReplayCapacity        = 1 << 20
	persistencePruneInterval = time.Minute
)

var (
	ErrMissingHeader    = errors.New("auth: missing signature header")
	ErrInvalidHeader    = errors.New("auth: malformed signature header")
	ErrStaleTimestamp   = errors.New("auth: timestamp outside allowed skew")
	ErrInvalidSignature = errors.New("auth: invalid request signature")
	ErrReplayed         = errors.New("auth: request already processed")
	ErrBodyTooLarge     = errors.New("auth: request body too large")
	// ErrReplayCacheFull is returned while every cached digest is still inside
	// its window. Live digests are never evicted to make room.
	ErrReplayCacheFull = errors.New("auth: replay cache saturated")
)

// Principal is the account that signed an authenticated request.
type Principal struct {
	Address   common.Address
	Timestamp int64

	replayKey string
}

// SeenRecord captures a persisted request digest.
type SeenRecord struct {
	Key        string
	ObservedAt time.Time
}

// ReplayPersistence provides durable storage for processed request digests so
// a restart does not reopen the replay window.
type ReplayPersistence interface {
	EnsureSeen(ctx context.Context, record SeenRecord) (bool, error)
	RecentSeen(ctx context.Context, cutoff time.Time) ([]SeenRecord, error)
	PruneSeen(ctx context.Context, cutoff time.Time) error
}

// Authenticator verifies secp256k1 request signatures and rejects replays
// inside the timestamp window.
type Authenticator struct {
	allowedTimestampSkew time.Duration
	nowFn                func() time.Time
	seen                 *replayCache

	persistMu   sync.Mutex
	persistence ReplayPersistence
	lastPruned  time.Time
}

// NewAuthenticator builds an Authenticator. skew is clamped to five minutes and
// capacity bounds the in-memory replay cache.
func NewAuthenticator(skew time.Duration, capacity int, nowFn func() time.Time, persistence ReplayPersistence) *Authenticator {
	if nowFn == nil {
		nowFn = time.Now
	}
	if skew <= 0 {
		skew = defaultTimestampSkew
	}
	if skew > maxAllowedTimestampSkew {
		skew = maxAllowedTimestampSkew
	}
	// A digest only needs remembering while its timestamp is still acceptable.
	return &Authenticator{
		allowedTimestampSkew: skew,
		nowFn:                nowFn,
		seen:                 newReplayCache(2*skew, capacity),
		persistence:          persistence,
	}
}

// Skew reports the effective timestamp window.
func (a *Authenticator) Skew() time.Duration { return a.allowedTimestampSkew }

// Authenticate verifies the request and records its digest, returning the
// signing principal.
func (a *Authenticator) Authenticate(r *http.Request, body []byte) (*Principal, error) {
	principal, err := a.Verify(r, body)
	if err != nil {
		return nil, err
	}
	if err := a.Record(r.Context(), principal); err != nil {
		return nil, err
	}
	return principal, nil
}

// Verify validates headers and signature without consuming the digest. Digests
// already recorded are rejected with ErrReplayed. Record must follow before the
// request has any effect.
func (a *Authenticator) Verify(r *http.Request, body []byte) (*Principal, error) {
	if len(body) > MaxBodyForSignature {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrBodyTooLarge, MaxBodyForSignature)
	}
	addrHeader := strings.TrimSpace(r.Header.Get(swcrypto.HeaderAddress))
	tsHeader := strings.TrimSpace(r.Header.Get(swcrypto.HeaderTimestamp))
	sigHeader := strings.TrimSpace(r.Header.Get(swcrypto.HeaderSignature))
	switch {
	case addrHeader == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, swcrypto.HeaderAddress)
	case tsHeader == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, swcrypto.HeaderTimestamp)
	case sigHeader == "":
		return nil, fmt.Errorf("%w: %s", ErrMissingHeader, swcrypto.HeaderSignature)
	}
	if !common.IsHexAddress(addrHeader) {
		return nil, fmt.Errorf("%w: address %q", ErrInvalidHeader, addrHeader)
	}
	claimed := common.HexToAddress(addrHeader)
	ts, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidHeader, err)
	}
	now := a.nowFn().UTC()
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > a.allowedTimestampSkew {
		return nil, fmt.Errorf("%w of %s", ErrStaleTimestamp, a.allowedTimestampSkew)
	}
	path := CanonicalRequestPath(r)
	if err := swcrypto.VerifyRequest(claimed, r.Method, path, ts, body, sigHeader); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	digest := common.Bytes2Hex(swcrypto.RequestDigest(r.Method, path, ts, body))
	key := strings.ToLower(claimed.Hex()) + "|" + digest
	if a.seen.Contains(key, now) {
		return nil, ErrReplayed
	}
	return &Principal{Address: claimed, Timestamp: ts, replayKey: key}, nil
}

// Record consumes the digest of a verified request. It fails with ErrReplayed
// when the digest was already recorded, here or in the persistence layer, and
// with ErrReplayCacheFull when no slot is free.
func (a *Authenticator) Record(ctx context.Context, p *Principal) error {
	if p == nil || p.replayKey == "" {
		return fmt.Errorf("%w: request was not verified", ErrMissingHeader)
	}
	return a.register(ctx, p.replayKey, a.nowFn().UTC())
}

// HydrateSeen warms the in-memory cache with persisted digests.
func (a *Authenticator) HydrateSeen(ctx context.Context) error {
	if a == nil || a.persistence == nil {
		return nil
	}
	now := a.nowFn().UTC()
	records, err := a.persistence.RecentSeen(ctx, now.Add(-a.seen.ttl))
	if err != nil {
		return fmt.Errorf("load persisted digests: %w", err)
	}
	for _, rec := range records {
		if strings.TrimSpace(rec.Key) == "" {
			continue
		}
		observed := rec.ObservedAt
		if observed.IsZero() {
			observed = now
		}
		a.seen.Add(rec.Key, observed)
	}
	return nil
}

func (a *Authenticator) register(ctx context.Context, key string, now time.Time) error {
	duplicate, err := a.seen.Seen(key, now)
	if err != nil {
		return err
	}
	if duplicate {
		return ErrReplayed
	}
	if a.persistence == nil {
		return nil
	}
	if err := a.prunePersistent(ctx, now); err != nil {
		a.seen.Forget(key)
		return err
	}
	existed, err := a.persistence.EnsureSeen(ctx, SeenRecord{Key: key, ObservedAt: now})
	if err != nil {
		a.seen.Forget(key)
		return fmt.Errorf("persist digest: %w", err)
	}
	if existed {
		return ErrReplayed
	}
	return nil
}

func (a *Authenticator) prunePersistent(ctx context.Context, now time.Time) error {
	a.persistMu.Lock()
	defer a.persistMu.Unlock()
	if !a.lastPruned.IsZero() && now.Sub(a.lastPruned) < persistencePruneInterval {
		return nil
	}
	if err := a.persistence.PruneSeen(ctx, now.Add(-a.seen.ttl)); err != nil {
		return fmt.Errorf("prune persisted digests: %w", err)
	}
	a.lastPruned = now
	return nil
}

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

func defaultOnError(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, err.Error(), http.StatusUnauthorized)
}

// Middleware authenticates the request and records its digest, then restores
// the body for downstream handlers and stores the principal on the request
// context. onError renders the rejection.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	verify := a.VerifyMiddleware(onError)
	record := a.RecordMiddleware(onError)
	return func(next http.Handler) http.Handler {
		return verify(record(next))
	}
}

// RecordMiddleware consumes the digest of a request already passed through
// VerifyMiddleware. Handlers placed between the two, such as a rate limiter,
// can reject the request without burning its signature.
func (a *Authenticator) RecordMiddleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultOnError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())
			if err := a.Record(r.Context(), principal); err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// VerifyMiddleware checks the signature, restores the body and stores the
// principal on the request context without recording the digest.
func (a *Authenticator) VerifyMiddleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultOnError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, int64(MaxBodyForSignature)+1))
			if err != nil {
				onError(w, r, fmt.Errorf("%w: read body: %v", ErrInvalidHeader, err))
				return
			}
			_ = r.Body.Close()
			principal, err := a.Verify(r, body)
			if err != nil {
				onError(w, r, err)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// CanonicalRequestPath normalises URL paths and query ordering for signing.
func CanonicalRequestPath(r *http.Request) string {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	if r.URL.RawQuery != "" {
		path += "?" + CanonicalQuery(r.URL.RawQuery)
	}
	return path
}

// CanonicalQuery sorts raw query parameters so both sides sign the same string.
func CanonicalQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

type replayCache struct {
	ttl      time.Duration
	capacity int

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List
}

type replayEntry struct {
	key string
	ts  time.Time
}

func newReplayCache(ttl time.Duration, capacity int) *replayCache {
	if ttl <= 0 {
		ttl = 2 * defaultTimestampSkew
	}
	if capacity <= 0 {
		capacity = defaultReplayCapacity
	}
	if capacity > maxReplayCapacity {
		capacity = maxReplayCapacity
	}
	return &replayCache{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Seen reports whether key was already observed inside the TTL and records it
// otherwise. Only expired entries are evicted; a cache full of live entries
// refuses new keys with ErrReplayCacheFull.
func (c *replayCache) Seen(key string, now time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired(now.Add(-c.ttl))
	if _, exists := c.entries[key]; exists {
		return true, nil
	}
	if c.order.Len() >= c.capacity {
		return false, ErrReplayCacheFull
	}
	c.insertLocked(key, now)
	return false, nil
}

func (c *replayCache) Contains(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired(now.Add(-c.ttl))
	_, exists := c.entries[key]
	return exists
}

// Add records a key known to be seen, regardless of capacity.
func (c *replayCache) Add(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired(now.Add(-c.ttl))
	c.insertLocked(key, now)
}

func (c *replayCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Forget drops key, releasing a slot reserved by a request that failed later.
func (c *replayCache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, exists := c.entries[key]; exists {
		c.order.Remove(elem)
		delete(c.entries, key)
	}
}

func (c *replayCache) insertLocked(key string, now time.Time) {
	if elem, exists := c.entries[key]; exists {
		elem.Value = replayEntry{key: key, ts: now}
		c.order.MoveToBack(elem)
		return
	}
	c.entries[key] = c.order.PushBack(replayEntry{key: key, ts: now})
}

func (c *replayCache) evictExpired(cutoff time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		entry := front.Value.(replayEntry)
		if !entry.ts.Before(cutoff) {
			return
		}
		c.order.Remove(front)
		delete(c.entries, entry.key)
	}
}
