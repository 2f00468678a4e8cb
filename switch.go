package dualgate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Side identifies one of the two gates of a [Switch].
type Side int

const (
	// Primary is the preferred side: the secondary gate's drain always
	// routes back to it, and forced entries pin it open.
	Primary Side = iota

	// Secondary is reached only via an explicit [Switch.RequestSecondary]
	// with no forced callers outstanding.
	Secondary
)

// Switch orchestrates two complementary gates so that at most one side is
// open at any steady-state instant. Closing one side's gate triggers, via
// its drained callback, the opening of the other side once every client of
// the closing side has released.
//
// The zero value is not usable; create one with [NewSwitch].
type Switch struct {
	_ noCopy

	primary   *Gate
	secondary *Gate

	// forced counts callers currently inside ForceEnterPrimary. While
	// non-zero, the primary gate's drain reopens the primary gate instead
	// of the secondary one, and RequestSecondary is a no-op.
	forced atomic.Int64

	disposed atomic.Bool

	// mu is the transition lock: it serializes the which-gate-opens-next
	// decision and disposal. It is never held across a blocking wait, and
	// never across Gate.Close, whose drained callback may run
	// synchronously and itself takes mu.
	mu sync.Mutex
}

// NewSwitch creates a switch with the given side initially open.
// Panics if start is not [Primary] or [Secondary].
func NewSwitch(start Side) *Switch {
	if start != Primary && start != Secondary {
		panic("dualgate: NewSwitch requires a valid Side")
	}
	s := &Switch{}
	s.primary = NewGate(start == Primary, s.primaryDrained)
	s.secondary = NewGate(start == Secondary, s.secondaryDrained)
	return s
}

// primaryDrained runs when the primary gate fully drains after a close.
// A registered forced caller steals the resource back: the primary gate
// reopens instead of the secondary one.
func (s *Switch) primaryDrained() {
	if s.disposed.Load() {
		return
	}
	s.mu.Lock()
	if !s.disposed.Load() {
		if s.forced.Load() > 0 {
			_, _ = s.primary.Open()
		} else {
			_, _ = s.secondary.Open()
		}
	}
	s.mu.Unlock()
	s.checkComplementary()
}

// secondaryDrained runs when the secondary gate fully drains after a
// close. It unconditionally routes back to the primary side.
func (s *Switch) secondaryDrained() {
	if s.disposed.Load() {
		return
	}
	s.mu.Lock()
	if !s.disposed.Load() {
		_, _ = s.primary.Open()
	}
	s.mu.Unlock()
	s.checkComplementary()
}

// RequestPrimary asks for the primary side to open. It closes the
// secondary gate if open and returns without waiting; the primary gate
// opens once the secondary gate drains. No-op if the secondary gate is
// already closed.
func (s *Switch) RequestPrimary() error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	return s.secondary.Close()
}

// RequestSecondary asks for the secondary side to open. It closes the
// primary gate if open and returns without waiting; the secondary gate
// opens once the primary gate drains. While any forced caller is
// registered, RequestSecondary does nothing: forced entries take
// precedence over the handoff.
func (s *Switch) RequestSecondary() error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	if s.forced.Load() > 0 {
		return nil
	}
	return s.primary.Close()
}

// EnterPrimary requests admission to the primary side. See [Gate.Enter]
// for timeout and error semantics.
func (s *Switch) EnterPrimary(ctx context.Context, timeout time.Duration) (*Guard, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	return s.primary.Enter(ctx, timeout)
}

// EnterSecondary requests admission to the secondary side. See
// [Gate.Enter] for timeout and error semantics.
func (s *Switch) EnterSecondary(ctx context.Context, timeout time.Duration) (*Guard, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	return s.secondary.Enter(ctx, timeout)
}

// ForceEnterPrimary enters the primary side with priority over any pending
// request for the secondary side. It registers the caller as a forced
// waiter, closes the secondary gate unconditionally, attempts primary
// entry, and deregisters regardless of outcome. Even if the primary gate
// is mid-drain toward the secondary side, its drain reopens it for the
// forced caller.
func (s *Switch) ForceEnterPrimary(ctx context.Context, timeout time.Duration) (*Guard, error) {
	if s.disposed.Load() {
		return nil, ErrDisposed
	}
	s.forced.Add(1)
	defer s.forced.Add(-1)

	if err := s.secondary.Close(); err != nil {
		return nil, err
	}
	return s.primary.Enter(ctx, timeout)
}

// ForcedWaiters returns the number of callers currently inside
// [Switch.ForceEnterPrimary]. The value may be stale in concurrent
// contexts.
func (s *Switch) ForcedWaiters() int64 {
	return s.forced.Load()
}

// Dispose tears down both gates under the transition lock. Blocked Enter
// calls unblock with [ErrDisposed] and all subsequent operations fail.
// Idempotent.
func (s *Switch) Dispose() {
	if !s.disposed.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primary.Dispose()
	s.secondary.Dispose()
}
