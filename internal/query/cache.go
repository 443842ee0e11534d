// Package query caches server reads per key and coordinates optimistic writes.
package query

import (
	"context"
	"net/url"
	"sync"
	"time"

	errors "github.com/Laisky/errors/v2"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Laisky/laisky-cms-admin/library/log"
)

// Key identifies one cached read.
type Key struct {
	Resource string
	Op       string
	// Params is the canonical (sorted) encoding of the request query.
	Params string
}

// NewKey builds a key; params are encoded in sorted order so equal
// queries produce equal keys.
func NewKey(resource, op string, params url.Values) Key {
	return Key{Resource: resource, Op: op, Params: params.Encode()}
}

// String renders the key for logs and singleflight.
func (k Key) String() string {
	return k.Resource + "|" + k.Op + "|" + k.Params
}

// Page is the canonical list result.
type Page[T any] struct {
	Items      []T
	TotalCount int
}

type entry struct {
	data      any
	fetchedAt time.Time
	stale     bool
}

// Option customises a Client.
type Option func(*Client)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger logSDK.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithFetchTimeout bounds every shared read. Zero leaves reads unbounded.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client is the process-wide read cache.
type Client struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	keyGen   map[Key]uint64
	resGen   map[string]uint64
	inflight map[Key]int
	subs     map[string]map[int]func()
	nextSub  int

	group   singleflight.Group
	now     func() time.Time
	timeout time.Duration
	logger  logSDK.Logger
}

// NewClient creates an empty cache.
func NewClient(opts ...Option) *Client {
	c := &Client{
		entries:  make(map[Key]*entry),
		keyGen:   make(map[Key]uint64),
		resGen:   make(map[string]uint64),
		inflight: make(map[Key]int),
		subs:     make(map[string]map[int]func()),
		now:      time.Now,
		logger:   log.Logger.Named("query"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

type generation struct {
	key uint64
	res uint64
}

func (c *Client) generationLocked(key Key) generation {
	return generation{key: c.keyGen[key], res: c.resGen[key.Resource]}
}

// ErrCancelled is returned to readers whose fetch was cancelled or
// invalidated while in flight.
var ErrCancelled = errors.New("query cancelled")

// Fetch returns the cached value of key while it is younger than staleTime,
// otherwise calls fn. Concurrent fetches of one key share a single call.
// Errors are never cached. A result is discarded when the key was cancelled
// or invalidated while fn was running.
//
// The shared call is detached from ctx, so a caller that gives up does not
// fail the others waiting on the same key.
func Fetch[T any](ctx context.Context, c *Client, key Key, staleTime time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !e.stale && c.now().Sub(e.fetchedAt) < staleTime {
		if v, ok := e.data.(T); ok {
			c.mu.Unlock()
			c.logger.Debug("cache hit", zap.String("key", key.String()))
			return v, nil
		}
	}
	c.mu.Unlock()

	ch := c.group.DoChan(key.String(), func() (any, error) {
		c.mu.Lock()
		gen := c.generationLocked(key)
		c.inflight[key]++
		c.mu.Unlock()

		callCtx := context.WithoutCancel(ctx)
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(callCtx, c.timeout)
			defer cancel()
		}
		v, err := fn(callCtx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.inflight[key]--; c.inflight[key] <= 0 {
			delete(c.inflight, key)
		}
		if err != nil {
			return nil, err
		}
		if c.generationLocked(key) != gen {
			c.logger.Debug("drop superseded result", zap.String("key", key.String()))
			return nil, ErrCancelled
		}

		c.entries[key] = &entry{data: v, fetchedAt: c.now()}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, errors.Wrap(ctx.Err(), "wait for query")
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, errors.Errorf("cached value of %s has type %T", key, res.Val)
		}
		return v, nil
	}
}

// Get returns the cached value of key, fresh or stale.
func Get[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	v, ok := e.data.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set writes v as the fresh value of key.
func Set[T any](c *Client, key Key, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{data: v, fetchedAt: c.now()}
}

// Remove drops key from the cache.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Cancel discards the outcome of any in-flight read of key.
func (c *Client) Cancel(key Key) {
	c.mu.Lock()
	c.keyGen[key]++
	c.mu.Unlock()

	c.group.Forget(key.String())
}

// IsFetching reports whether a read of key is in flight.
func (c *Client) IsFetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.inflight[key] > 0
}

// IsStale reports whether key is absent, invalidated, or older than staleTime.
func (c *Client) IsStale(key Key, staleTime time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	return !ok || e.stale || c.now().Sub(e.fetchedAt) >= staleTime
}

// Invalidate marks every entry of resource stale, discards in-flight reads
// of it, and notifies subscribers.
func (c *Client) Invalidate(resource string) {
	c.mu.Lock()
	c.resGen[resource]++
	var forget []Key
	for k, e := range c.entries {
		if k.Resource == resource {
			e.stale = true
		}
	}
	for k := range c.inflight {
		if k.Resource == resource {
			forget = append(forget, k)
		}
	}
	subs := make([]func(), 0, len(c.subs[resource]))
	for _, fn := range c.subs[resource] {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, k := range forget {
		c.group.Forget(k.String())
	}

	c.logger.Debug("invalidate", zap.String("resource", resource))
	for _, fn := range subs {
		fn()
	}
}

// Subscribe calls fn after every Invalidate of resource.
// The returned func removes the subscription.
func (c *Client) Subscribe(resource string, fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	if c.subs[resource] == nil {
		c.subs[resource] = make(map[int]func())
	}
	c.subs[resource][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs[resource], id)
	}
}
