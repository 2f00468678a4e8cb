package dualgate

// noCopy triggers `go vet -copylocks` on values that must not be copied
// after first use.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
