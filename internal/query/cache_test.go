package query

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type row struct {
	ID   string
	Name string
	Tags []string
}

func TestNewKey_CanonicalParams(t *testing.T) {
	a := NewKey("category", "list", url.Values{"page": {"1"}, "limit": {"10"}})
	b := NewKey("category", "list", url.Values{"limit": {"10"}, "page": {"1"}})
	require.Equal(t, a, b)
	require.NotEqual(t, a, NewKey("category", "list", url.Values{"limit": {"10"}, "page": {"2"}}))
}

func TestFetch_FreshWithinStaleTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := NewClient(WithClock(clock.Now))
	key := NewKey("category", "list", nil)

	var calls atomic.Int32
	fetch := func(context.Context) (int, error) { return int(calls.Add(1)), nil }

	v, err := Fetch(context.Background(), c, key, 30*time.Second, fetch)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clock.Advance(10 * time.Second)
	v, err = Fetch(context.Background(), c, key, 30*time.Second, fetch)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	clock.Advance(30 * time.Second)
	require.True(t, c.IsStale(key, 30*time.Second))
	v, err = Fetch(context.Background(), c, key, 30*time.Second, fetch)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestFetch_ErrorsAreNotCached(t *testing.T) {
	c := NewClient()
	key := NewKey("post", "list", nil)

	_, err := Fetch(context.Background(), c, key, time.Minute, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	require.Error(t, err)
	_, ok := Get[int](c, key)
	require.False(t, ok)

	v, err := Fetch(context.Background(), c, key, time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestFetch_SharesConcurrentCalls(t *testing.T) {
	c := NewClient()
	key := NewKey("post", "list", nil)

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = Fetch(context.Background(), c, key, time.Minute, fetch)
		}()
	}

	require.Eventually(t, func() bool { return c.IsFetching(key) }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, []int{42, 42, 42, 42, 42}, results)
}

// A caller that leaves must not fail another caller waiting on the same key.
func TestFetch_SharedCallOutlivesFirstCaller(t *testing.T) {
	c := NewClient()
	key := NewKey("category", "list", url.Values{"page": {"1"}})

	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		select {
		case <-release:
			return 7, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	leaving, leave := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := Fetch(leaving, c, key, time.Minute, fetch)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return c.IsFetching(key) }, time.Second, time.Millisecond)

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), c, key, time.Minute, fetch)
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	leave()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, 7, got.v)
	require.Equal(t, int32(1), calls.Load())

	v, ok := Get[int](c, key)
	require.True(t, ok)
	require.Equal(t, 7, v)
}

func TestFetch_TimeoutBoundsSharedCall(t *testing.T) {
	c := NewClient(WithFetchTimeout(20 * time.Millisecond))
	key := NewKey("post", "get", url.Values{"id": {"1"}})

	_, err := Fetch(context.Background(), c, key, time.Minute, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, c.IsFetching(key))
}

// Distinct params never share cached data.
func TestFetch_KeysAreIsolated(t *testing.T) {
	c := NewClient()
	ctx := context.Background()
	k1 := NewKey("category", "list", url.Values{"page": {"1"}})
	k2 := NewKey("category", "list", url.Values{"page": {"2"}})

	_, err := Fetch(ctx, c, k1, time.Minute, func(context.Context) (string, error) { return "page one", nil })
	require.NoError(t, err)
	_, err = Fetch(ctx, c, k2, time.Minute, func(context.Context) (string, error) { return "page two", nil })
	require.NoError(t, err)

	Set(c, k1, "changed")
	v, _ := Get[string](c, k2)
	require.Equal(t, "page two", v)

	c.Remove(k1)
	v, ok := Get[string](c, k2)
	require.True(t, ok)
	require.Equal(t, "page two", v)
}

func TestCancel_DropsInFlightResult(t *testing.T) {
	c := NewClient()
	key := NewKey("category", "list", nil)
	Set(c, key, "optimistic")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Fetch(context.Background(), c, key, 0, func(context.Context) (string, error) {
			close(started)
			<-release
			return "server", nil
		})
		done <- err
	}()

	<-started
	c.Cancel(key)
	close(release)

	require.ErrorIs(t, <-done, ErrCancelled)
	v, _ := Get[string](c, key)
	require.Equal(t, "optimistic", v)
}

func TestInvalidate_MarksStaleAndNotifies(t *testing.T) {
	c := NewClient()
	ctx := context.Background()
	cat := NewKey("category", "list", nil)
	post := NewKey("post", "list", nil)
	_, _ = Fetch(ctx, c, cat, time.Hour, func(context.Context) (int, error) { return 1, nil })
	_, _ = Fetch(ctx, c, post, time.Hour, func(context.Context) (int, error) { return 1, nil })

	var notified atomic.Int32
	unsubscribe := c.Subscribe("category", func() { notified.Add(1) })

	c.Invalidate("category")
	require.True(t, c.IsStale(cat, time.Hour))
	require.False(t, c.IsStale(post, time.Hour))
	require.Equal(t, int32(1), notified.Load())

	v, ok := Get[int](c, cat)
	require.True(t, ok, "stale data stays readable")
	require.Equal(t, 1, v)

	unsubscribe()
	c.Invalidate("category")
	require.Equal(t, int32(1), notified.Load())
}

func TestFetch_ContextCancelled(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	defer close(release)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Fetch(ctx, c, NewKey("post", "get", nil), time.Minute, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
