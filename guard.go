package dualgate

import (
	"context"
	"sync/atomic"
)

var closedchan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Guard is the capability returned by [Gate.Enter]. An acquired guard
// represents the right to execute inside the gate's protected section and
// must be released on every exit path:
//
//	guard, err := gate.Enter(ctx, timeout)
//	if err != nil || !guard.Acquired() {
//	    // handle
//	}
//	defer guard.Release()
//
// A Guard must not be copied. Release is idempotent; a guard that was never
// released leaks a permanently held admission.
type Guard struct {
	_ noCopy

	gate     *Gate
	period   *period
	acquired bool
	released atomic.Bool
}

// Acquired reports whether entry succeeded. A false value means the
// timeout elapsed before admission; it is not an error and the guard holds
// nothing.
func (gd *Guard) Acquired() bool {
	return gd != nil && gd.acquired
}

// Release returns the admission to the gate. Releasing the last admission
// of a closed gate fires the gate's drained callback. Safe to call more
// than once and on a not-acquired guard; only the first call on an
// acquired guard has effect.
func (gd *Guard) Release() {
	if gd == nil || !gd.acquired {
		return
	}
	if gd.released.CompareAndSwap(false, true) {
		gd.gate.exit()
	}
}

// Done returns the cancellation signal of the open period this guard was
// admitted under. The channel is closed when the gate closes or is
// disposed; holders should poll it to abort long work cooperatively, since
// an admission cannot be revoked. The signal stays closed forever even if
// the gate later reopens.
//
// For a not-acquired guard, Done returns an already-closed channel.
func (gd *Guard) Done() <-chan struct{} {
	if gd == nil || gd.period == nil {
		return closedchan
	}
	return gd.period.ctx.Done()
}

// Err returns nil while the guard's open period is still current, and
// [context.Canceled] once the period has ended.
func (gd *Guard) Err() error {
	if gd == nil || gd.period == nil {
		return context.Canceled
	}
	return gd.period.ctx.Err()
}
