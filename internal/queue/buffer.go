package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	// ErrFull is returned by TryAdmit when no slot freed up before the timeout.
	ErrFull = errors.New("queue: buffer full")
	// ErrEmpty is returned by TakeNext when no item arrived before the timeout.
	ErrEmpty = errors.New("queue: no work")
	// ErrInvalidCapacity is returned by New for a capacity below one.
	ErrInvalidCapacity = errors.New("queue: capacity must be positive")
)

// Buffer is a bounded FIFO with admission control.
//
// Free slots and ready items are each counted by a semaphore. The ring
// itself is guarded by mu. A successful admit consumes one slot permit and
// publishes one item permit; a successful take does the reverse.
type Buffer[T any] struct {
	capacity int
	slots    *semaphore.Weighted
	items    *semaphore.Weighted

	mu   sync.Mutex
	ring []T
	head int
	size int
}

// New creates an empty buffer holding at most capacity items.
func New[T any](capacity int) (*Buffer[T], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	items := semaphore.NewWeighted(int64(capacity))
	// Start with zero ready items.
	if !items.TryAcquire(int64(capacity)) {
		return nil, errors.New("queue: item gate init failed")
	}
	return &Buffer[T]{
		capacity: capacity,
		slots:    semaphore.NewWeighted(int64(capacity)),
		items:    items,
		ring:     make([]T, capacity),
	}, nil
}

// Capacity returns the configured capacity.
func (b *Buffer[T]) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// TryAdmit appends item at the tail, waiting at most timeout for a free slot.
// A free slot is taken even after ctx is done; ctx only ends a wait. It
// returns ErrFull on timeout and ctx.Err() when shutdown interrupts the wait.
// On error the buffer is left untouched and the caller still owns item.
func (b *Buffer[T]) TryAdmit(ctx context.Context, item T, timeout time.Duration) error {
	if !b.slots.TryAcquire(1) {
		if err := acquire(ctx, b.slots, timeout, ErrFull); err != nil {
			return err
		}
	}

	b.mu.Lock()
	tail := (b.head + b.size) % b.capacity
	b.ring[tail] = item
	b.size++
	b.mu.Unlock()

	b.items.Release(1)
	return nil
}

// TakeNext removes and returns the head item, waiting at most timeout for one
// to arrive. It returns ErrEmpty on timeout and ctx.Err() once ctx is done.
func (b *Buffer[T]) TakeNext(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	if err := acquire(ctx, b.items, timeout, ErrEmpty); err != nil {
		return zero, err
	}

	b.mu.Lock()
	item := b.ring[b.head]
	b.ring[b.head] = zero
	b.head = (b.head + 1) % b.capacity
	b.size--
	b.mu.Unlock()

	b.slots.Release(1)
	return item, nil
}

// Drain removes every buffered item without waiting. Only meant for use once
// all producers and consumers have stopped.
func (b *Buffer[T]) Drain() []T {
	var out []T
	for {
		if !b.items.TryAcquire(1) {
			return out
		}
		b.mu.Lock()
		var zero T
		out = append(out, b.ring[b.head])
		b.ring[b.head] = zero
		b.head = (b.head + 1) % b.capacity
		b.size--
		b.mu.Unlock()
		b.slots.Release(1)
	}
}

func acquire(ctx context.Context, gate *semaphore.Weighted, timeout time.Duration, timeoutErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if gate.TryAcquire(1) {
		return nil
	}
	if timeout <= 0 {
		return timeoutErr
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := gate.Acquire(waitCtx, 1); err != nil {
		// Shutdown wins over an expired deadline.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return timeoutErr
	}
	return nil
}
