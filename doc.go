// Package dualgate provides a two-sided mutual-exclusion gate for Go.
//
// Two competing groups of goroutines share a resource such that at any
// steady-state instant only one group is executing protected work. When the
// active side switches, the handoff is race-free: no client of the
// newly-opened side starts before every client of the previously-open side
// has released its admission.
//
// # Gates and Guards
//
// A [Gate] admits clients while open and tracks how many are inside.
// Clients call [Gate.Enter] with a context and a timeout:
//
//	guard, err := gate.Enter(ctx, 100*time.Millisecond)
//	if err != nil {
//	    return err // disposed or canceled
//	}
//	if !guard.Acquired() {
//	    return nil // timed out; not an error
//	}
//	defer guard.Release()
//	// ... protected work ...
//
// Timeout expiry is a normal outcome reported via [Guard.Acquired], never an
// error. A timeout of zero polls without blocking; [Forever] (or any
// negative timeout) waits indefinitely. Cancellation and disposal are
// errors: a canceled context surfaces ctx.Err(), a torn-down gate surfaces
// [ErrDisposed].
//
// The [Guard] must be released on every exit path; Release is idempotent.
// While a client is inside, [Guard.Done] exposes a cancellation signal that
// is closed when the gate closes, so long-running work can abort
// cooperatively even though its admission cannot be revoked.
//
// Closing a gate stops new admissions immediately but lets clients already
// inside finish. When the last one releases, the gate's drained callback
// fires exactly once for that close cycle.
//
// # The Switch
//
// A [Switch] owns two complementary gates, [Primary] and [Secondary]: never
// both open, and never both fully drained except during an instantaneous
// handoff. [Switch.RequestSecondary] closes the primary gate; once it
// drains, the secondary gate opens automatically. [Switch.RequestPrimary]
// works the same way in reverse.
//
// The primary side is the preferred side. [Switch.ForceEnterPrimary]
// overrides a pending switch: it closes the secondary gate and guarantees
// the primary gate reopens for the forced caller even if a request for the
// secondary side is mid-drain. While any forced caller is registered,
// RequestSecondary is a no-op.
//
// # Ordering and Fairness
//
// There is no FIFO guarantee among goroutines blocked in Enter; any subset
// may be admitted when a gate opens. Once Close returns, no new Enter
// succeeds until the gate reopens, and once a close cycle's drained
// callback has fired, every client admitted before the close has observably
// exited.
package dualgate
