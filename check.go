//go:build dualgate_checkinvariants

package dualgate

import "runtime"

// checkRetries bounds the spin in checkComplementary. Transient
// both-fully-closed states during a handoff are expected; a state that
// persists this long is a bug.
const checkRetries = 1 << 16

// checkComplementary spin-verifies that the two gates are never both open
// and never both fully closed outside a transition. It is a consistency
// assertion for development builds only; clients must not rely on it.
func (s *Switch) checkComplementary() {
	for i := 0; i < checkRetries; i++ {
		if s.disposed.Load() {
			return
		}
		bothOpen := s.primary.IsOpen() && s.secondary.IsOpen()
		bothClosed := s.primary.fullyClosed() && s.secondary.fullyClosed()
		if !bothOpen && !bothClosed {
			return
		}
		runtime.Gosched()
	}
	panic("dualgate: internal error: gates lost complementary state")
}
