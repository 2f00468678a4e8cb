//go:build !dualgate_checkinvariants

package dualgate

// checkComplementary is compiled out of production builds. Enable the
// dualgate_checkinvariants build tag to spin-verify that the two gates
// keep complementary state.
func (s *Switch) checkComplementary() {}
