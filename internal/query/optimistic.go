package query

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/jinzhu/copier"
)

// Snapshot is a deep copy of one cache entry taken before a mutation.
type Snapshot[T any] struct {
	Key   Key
	Value T
	Found bool
}

// Optimistic applies a local change to one cache entry ahead of the server.
type Optimistic[T any] struct {
	c   *Client
	key Key
}

// NewOptimistic binds the optimistic helpers to key.
func NewOptimistic[T any](c *Client, key Key) *Optimistic[T] {
	return &Optimistic[T]{c: c, key: key}
}

// Snapshot deep-copies the current value so later edits cannot alias it.
func (o *Optimistic[T]) Snapshot() (Snapshot[T], error) {
	snap := Snapshot[T]{Key: o.key}

	cur, ok := Get[T](o.c, o.key)
	if !ok {
		return snap, nil
	}

	if err := copier.CopyWithOption(&snap.Value, &cur, copier.Option{DeepCopy: true}); err != nil {
		return snap, errors.Wrapf(err, "snapshot %s", o.key)
	}
	snap.Found = true

	return snap, nil
}

// Apply cancels in-flight reads of the key, then stores update(current).
func (o *Optimistic[T]) Apply(update func(cur T, found bool) T) {
	o.c.Cancel(o.key)

	cur, ok := Get[T](o.c, o.key)
	Set(o.c, o.key, update(cur, ok))
}

// Rollback restores the snapshot.
func (o *Optimistic[T]) Rollback(snap Snapshot[T]) {
	o.c.Cancel(o.key)

	if !snap.Found {
		o.c.Remove(o.key)
		return
	}
	Set(o.c, o.key, snap.Value)
}

// Reconcile invalidates the resource so the next read fetches server truth.
func (o *Optimistic[T]) Reconcile() {
	o.c.Invalidate(o.key.Resource)
}

// Mutate runs do with an optimistic update of key: snapshot, apply,
// restore on error, and invalidate once settled either way.
func Mutate[T, R any](ctx context.Context,
	c *Client,
	key Key,
	update func(cur T, found bool) T,
	do func(context.Context) (R, error),
) (R, error) {
	var zero R
	opt := NewOptimistic[T](c, key)

	snap, err := opt.Snapshot()
	if err != nil {
		return zero, err
	}
	defer opt.Reconcile()

	opt.Apply(update)

	res, err := do(ctx)
	if err != nil {
		c.logger.Debug("rollback optimistic update", zap.String("key", key.String()), zap.Error(err))
		opt.Rollback(snap)
		return zero, err
	}

	return res, nil
}
