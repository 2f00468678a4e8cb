package dualgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrDisposed is returned by operations on a [Gate] or [Switch] that has
// been torn down via Dispose. It is terminal: the caller must stop using
// the primitive.
var ErrDisposed = errors.New("dualgate: disposed")

// Forever makes [Gate.Enter] wait indefinitely. Any negative timeout is
// treated the same way.
const Forever time.Duration = -1

// period is the cancellation scope of one open interval of a gate. A fresh
// period is installed each time the gate opens; the previous period's
// context stays canceled forever, so guards handed out before a close keep
// observing cancellation after the gate reopens.
type period struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newPeriod() *period {
	ctx, cancel := context.WithCancel(context.Background())
	return &period{ctx: ctx, cancel: cancel}
}

// Gate is a single-side admission gate. While open it admits clients via
// [Gate.Enter]; while closed it blocks them. The gate counts clients inside
// its protected section and invokes a drained callback exactly once per
// close cycle, when the last client releases after a [Gate.Close].
//
// While the gate is open the count carries a +1 bias (the gate's own
// phantom hold), so the count cannot spuriously reach zero during the
// open-to-closing race; the bias is removed as part of Close.
type Gate struct {
	_ noCopy

	// count is the number of admitted, not-yet-released clients, plus
	// the phantom hold while the gate is open. Mutated only via atomic
	// add; the decrement that brings it to zero fires the drained
	// callback.
	count atomic.Int64

	// drainArmed is set when the gate opens and consumed (CAS true->false)
	// by whichever decrement observes count==0 while the gate is closed.
	// This is the exactly-once-per-cycle latch for the drained callback.
	drainArmed atomic.Bool

	open     atomic.Bool
	disposed atomic.Bool

	// mu serializes Open, Close and Dispose and guards waitCh swaps.
	// It is never held across a blocking wait or across the drained
	// callback.
	mu     sync.Mutex
	waitCh chan struct{} // closed iff the gate is open; replaced on Close

	period atomic.Pointer[period]

	done chan struct{} // closed on Dispose; unblocks all waiters

	onDrained func()
}

// NewGate creates a gate in the given initial state. onDrained may be nil;
// when non-nil it is invoked exactly once per close cycle, at the moment
// the admitted count reaches zero while the gate is closed. The callback
// runs on the goroutine whose release completed the drain and must not
// block.
func NewGate(open bool, onDrained func()) *Gate {
	g := &Gate{
		onDrained: onDrained,
		done:      make(chan struct{}),
	}
	if open {
		g.count.Store(1) // phantom hold
		g.drainArmed.Store(true)
		g.period.Store(newPeriod())
		g.open.Store(true)
		ch := make(chan struct{})
		close(ch)
		g.waitCh = ch
	} else {
		p := newPeriod()
		p.cancel()
		g.period.Store(p)
		g.waitCh = make(chan struct{})
	}
	return g
}

// Enter requests admission. It returns an error only for terminal
// conditions: [ErrDisposed] if the gate is (or becomes) disposed, or
// ctx.Err() if ctx is already canceled at call time or becomes canceled
// while waiting. Timeout expiry is not an error; it yields a [Guard] whose
// Acquired method reports false.
//
// A timeout of zero polls without blocking. A negative timeout (see
// [Forever]) waits indefinitely.
func (g *Gate) Enter(ctx context.Context, timeout time.Duration) (*Guard, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g.disposed.Load() {
		return nil, ErrDisposed
	}
	// A pre-canceled context fails before the admission check, even if
	// the gate is open.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infinite := timeout < 0
	var deadline time.Time
	if !infinite {
		deadline = time.Now().Add(timeout)
	}

	for {
		if g.disposed.Load() {
			return nil, ErrDisposed
		}
		if guard := g.tryEnter(); guard != nil {
			return guard, nil
		}

		var remaining time.Duration
		if !infinite {
			remaining = time.Until(deadline)
			if remaining <= 0 {
				return &Guard{}, nil // timed out; not an error
			}
		}

		g.mu.Lock()
		ch := g.waitCh
		g.mu.Unlock()

		if infinite {
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-g.done:
				return nil, ErrDisposed
			}
			continue
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-g.done:
			timer.Stop()
			return nil, ErrDisposed
		case <-timer.C:
			return &Guard{}, nil
		}
	}
}

// tryEnter is the fast path: increment the count, then check the open
// flag. On failure the increment is rolled back via exit, which completes
// a concurrent drain if this attempt held the last unit.
func (g *Gate) tryEnter() *Guard {
	g.count.Add(1)
	if g.open.Load() {
		return &Guard{gate: g, period: g.period.Load(), acquired: true}
	}
	g.exit()
	return nil
}

// exit decrements the count and fires the drained callback if this
// decrement completed a close cycle. Called by Guard.Release, by the fast
// path rollback, and by Close for the phantom hold.
func (g *Gate) exit() {
	n := g.count.Add(-1)
	if n < 0 {
		g.count.Add(1) // undo
		panic("dualgate: gate count underflow")
	}
	if n == 0 && !g.open.Load() && g.drainArmed.CompareAndSwap(true, false) {
		if g.onDrained != nil {
			g.onDrained()
		}
	}
}

// Open reopens a closed gate: the phantom hold is re-added, drain
// detection is re-armed, a fresh cancellation period is installed, and all
// blocked Enter calls are woken. It reports whether the gate transitioned
// (false means it was already open). Returns [ErrDisposed] after Dispose.
func (g *Gate) Open() (bool, error) {
	g.mu.Lock()
	if g.disposed.Load() {
		g.mu.Unlock()
		return false, ErrDisposed
	}
	if g.open.Load() {
		g.mu.Unlock()
		return false, nil
	}
	g.count.Add(1) // phantom hold
	g.drainArmed.Store(true)
	g.period.Store(newPeriod())
	g.open.Store(true)
	ch := g.waitCh
	g.mu.Unlock()

	close(ch)
	return true, nil
}

// Close stops new admissions. Clients already inside keep their guards;
// the drained callback fires once the last of them releases. The open
// signal is reset before the current period is canceled, so clients
// observe the closed state no later than cancellation. No-op if already
// closed. Returns [ErrDisposed] after Dispose.
//
// Close never blocks: it does not wait for the gate to drain.
func (g *Gate) Close() error {
	g.mu.Lock()
	if g.disposed.Load() {
		g.mu.Unlock()
		return ErrDisposed
	}
	if !g.open.Load() {
		g.mu.Unlock()
		return nil
	}
	g.open.Store(false)
	g.waitCh = make(chan struct{}) // waiters block until the next Open
	p := g.period.Load()
	g.mu.Unlock()

	// Release the phantom hold. If no clients remain this fires the
	// drained callback, and it must happen before the period is
	// canceled.
	g.exit()
	p.cancel()
	return nil
}

// Dispose tears the gate down. All blocked Enter calls unblock with
// [ErrDisposed], the current period is canceled, and the drained callback
// is disarmed so it cannot fire after teardown. Idempotent.
func (g *Gate) Dispose() {
	g.mu.Lock()
	if g.disposed.Load() {
		g.mu.Unlock()
		return
	}
	g.disposed.Store(true)
	g.drainArmed.Store(false)
	p := g.period.Load()
	g.mu.Unlock()

	p.cancel()
	close(g.done)
}

// IsOpen reports whether the gate currently admits new clients.
// The value may be stale in concurrent contexts.
func (g *Gate) IsOpen() bool {
	return g.open.Load()
}

// Admitted returns the number of clients currently inside the protected
// section, excluding the gate's own phantom hold. The value may be stale
// in concurrent contexts.
func (g *Gate) Admitted() int64 {
	n := g.count.Load()
	if g.open.Load() {
		n--
	}
	if n < 0 {
		return 0
	}
	return n
}

// fullyClosed reports whether the gate is closed and drained. Used by the
// debug invariant checker.
func (g *Gate) fullyClosed() bool {
	return !g.open.Load() && g.count.Load() == 0
}
