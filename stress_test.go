package dualgate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestStressMutualExclusion hammers both sides of a switch while a
// controller flips it back and forth. Workers record how many of them are
// inside each side's protected section; observing both sides occupied at
// once is a violation of the handoff guarantee.
func TestStressMutualExclusion(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	const (
		workersPerSide = 8
		runFor         = 300 * time.Millisecond
	)

	s := NewSwitch(Primary)
	defer s.Dispose()

	var (
		insidePrimary   atomic.Int64
		insideSecondary atomic.Int64
		violations      atomic.Int64
		admissions      atomic.Int64
		stop            atomic.Bool
	)

	var errg errgroup.Group

	worker := func(enter func(context.Context, time.Duration) (*Guard, error), mine, other *atomic.Int64) func() error {
		return func() error {
			for !stop.Load() {
				guard, err := enter(context.Background(), 5*time.Millisecond)
				if err != nil {
					return err
				}
				if !guard.Acquired() {
					continue
				}
				admissions.Add(1)
				mine.Add(1)
				if other.Load() > 0 {
					violations.Add(1)
				}
				mine.Add(-1)
				guard.Release()
			}
			return nil
		}
	}

	for i := 0; i < workersPerSide; i++ {
		errg.Go(worker(s.EnterPrimary, &insidePrimary, &insideSecondary))
		errg.Go(worker(s.EnterSecondary, &insideSecondary, &insidePrimary))
	}

	// Controller: alternate sides, with the occasional forced override.
	errg.Go(func() error {
		for i := 0; !stop.Load(); i++ {
			switch i % 4 {
			case 0:
				if err := s.RequestSecondary(); err != nil {
					return err
				}
			case 1, 3:
				if err := s.RequestPrimary(); err != nil {
					return err
				}
			case 2:
				guard, err := s.ForceEnterPrimary(context.Background(), 10*time.Millisecond)
				if err != nil {
					return err
				}
				guard.Release()
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})

	time.Sleep(runFor)
	stop.Store(true)
	require.NoError(t, errg.Wait())

	assert.Equal(t, int64(0), violations.Load(),
		"both sides were observed inside the protected section at once")
	assert.Positive(t, admissions.Load(), "stress run should admit some work")
	assert.Equal(t, int64(0), s.primary.Admitted(), "all primary guards returned")
	assert.Equal(t, int64(0), s.secondary.Admitted(), "all secondary guards returned")
}

// TestStressCountNeverNegative races Enter attempts against rapid
// open/close cycles; the rollback path must keep the count balanced and
// fire each cycle's drain exactly once.
func TestStressCountNeverNegative(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	const (
		workers = 16
		runFor  = 200 * time.Millisecond
	)

	var (
		drains atomic.Int64
		closes atomic.Int64
		stop   atomic.Bool
	)
	// At most one close cycle is in flight at a time, so a 1-buffered
	// channel never drops a drain signal.
	drained := make(chan struct{}, 1)
	g := NewGate(true, func() {
		drains.Add(1)
		drained <- struct{}{}
	})

	var errg errgroup.Group
	for i := 0; i < workers; i++ {
		errg.Go(func() error {
			for !stop.Load() {
				guard, err := g.Enter(context.Background(), 0)
				if err != nil {
					return err
				}
				guard.Release()
			}
			return nil
		})
	}
	errg.Go(func() error {
		for !stop.Load() {
			if err := g.Close(); err != nil {
				return err
			}
			closes.Add(1)
			<-drained
			if _, err := g.Open(); err != nil {
				return err
			}
		}
		return nil
	})

	time.Sleep(runFor)
	stop.Store(true)
	require.NoError(t, errg.Wait())

	assert.Equal(t, int64(0), g.Admitted(), "every admission was returned")
	assert.Equal(t, closes.Load(), drains.Load(),
		"each completed close cycle drains exactly once")
}

// TestStressDisposeWhileBusy tears the gate down mid-traffic; every worker
// must come to rest with ErrDisposed and no drain may fire afterwards.
func TestStressDisposeWhileBusy(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	var drains atomic.Int64
	g := NewGate(true, func() { drains.Add(1) })

	var errg errgroup.Group
	for i := 0; i < 8; i++ {
		errg.Go(func() error {
			for {
				guard, err := g.Enter(context.Background(), time.Millisecond)
				if err != nil {
					return err
				}
				guard.Release()
			}
		})
	}

	time.Sleep(50 * time.Millisecond)
	g.Dispose()

	assert.ErrorIs(t, errg.Wait(), ErrDisposed)

	// Once every worker has come to rest, the disarmed gate stays quiet.
	settled := drains.Load()
	_, err := g.Enter(context.Background(), 0)
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Equal(t, settled, drains.Load(), "no drain notification after teardown settles")
	assert.Equal(t, int64(0), drains.Load(), "the gate was never closed, only disposed")
}
