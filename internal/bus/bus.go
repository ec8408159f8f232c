// Package bus is a single-publisher, many-subscriber broadcast ring.
//
// Publishing never blocks. Each subscriber owns a cursor into the ring; a
// subscriber that falls more than one ring length behind skips ahead to the
// oldest retained value and the skipped count is reported through the lag hook.
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Recv once the bus is closed and the cursor has
// caught up with the last published value
var ErrClosed = errors.New("bus: closed")

// DefaultCapacity is used when New is given a non-positive capacity
const DefaultCapacity = 256

// Bus fans out values to independent subscribers
type Bus[T any] struct {
	mu     sync.Mutex
	ring   []T
	head   uint64        // sequence of the next value to publish
	wake   chan struct{} // closed and replaced on every publish
	closed bool

	onLag  func(skipped uint64)
	lagged atomic.Uint64
	subs   atomic.Int64
}

// New creates a bus retaining the last capacity values.
// onLag, if non-nil, is called from the lagging subscriber's goroutine.
func New[T any](capacity int, onLag func(skipped uint64)) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus[T]{
		ring:  make([]T, capacity),
		wake:  make(chan struct{}),
		onLag: onLag,
	}
}

// Publish appends v to the ring and wakes every waiting subscriber.
// Publishing to a closed bus is a no-op.
func (b *Bus[T]) Publish(v T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.ring[b.head%uint64(len(b.ring))] = v
	b.head++
	wake := b.wake
	b.wake = make(chan struct{})
	b.mu.Unlock()

	close(wake)
}

// Close wakes all subscribers; they drain what remains and then get ErrClosed
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.wake)
}

// Subscribe returns a cursor positioned after the most recent value
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs.Add(1)
	return &Subscription[T]{bus: b, next: b.head}
}

// Subscribers returns the number of open subscriptions
func (b *Bus[T]) Subscribers() int {
	return int(b.subs.Load())
}

// Lagged returns the total number of values skipped by slow subscribers
func (b *Bus[T]) Lagged() uint64 {
	return b.lagged.Load()
}

// Published returns the number of values published so far
func (b *Bus[T]) Published() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.head
}

// Subscription is one reader's cursor. It is not safe for concurrent use.
type Subscription[T any] struct {
	bus      *Bus[T]
	next     uint64
	lagged   uint64
	released atomic.Bool
}

// Recv blocks until a value is available, the bus closes or ctx is done
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		v, ok, wake, closed, skipped := s.poll()
		if skipped > 0 {
			s.lagged += skipped
			s.bus.lagged.Add(skipped)
			if s.bus.onLag != nil {
				s.bus.onLag(skipped)
			}
		}
		if ok {
			return v, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-wake:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Lagged returns how many values this subscription has skipped
func (s *Subscription[T]) Lagged() uint64 {
	return s.lagged
}

// Close releases the subscription. Recv must not be called afterwards.
func (s *Subscription[T]) Close() {
	if s.released.CompareAndSwap(false, true) {
		s.bus.subs.Add(-1)
	}
}

func (s *Subscription[T]) poll() (v T, ok bool, wake <-chan struct{}, closed bool, skipped uint64) {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	size := uint64(len(b.ring))
	if b.head-s.next > size {
		oldest := b.head - size
		skipped = oldest - s.next
		s.next = oldest
	}
	if s.next < b.head {
		v = b.ring[s.next%size]
		s.next++
		return v, true, nil, false, skipped
	}
	return v, false, b.wake, b.closed, skipped
}
