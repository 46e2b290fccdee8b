package renderer

import (
	"github.com/spaghettifunk/snow/engine/renderer/driver"
)

type SignalState int

const (
	// SignalNotSubmitted is work that is recorded but not handed to the GPU.
	SignalNotSubmitted SignalState = iota
	// SignalPending is submitted work that may still be executing.
	SignalPending
	// SignalCompleted is work the GPU has finished, or no work at all.
	SignalCompleted
)

func (s SignalState) String() string {
	switch s {
	case SignalNotSubmitted:
		return "not-submitted"
	case SignalPending:
		return "pending"
	case SignalCompleted:
		return "completed"
	}
	return "unknown"
}

// Signal tracks the completion of GPU work independently of the native
// primitive backing it. A leaf signal is backed by a fence; a joined
// signal completes when all of its predecessors do. Resources attached
// with a release function are handed back once the signal completes.
type Signal struct {
	state   SignalState
	fence   driver.Fence
	preds   []*Signal
	release []func()
}

// Completed returns a signal that is already complete. It stands in for
// "no previous frame".
func Completed() *Signal {
	return &Signal{state: SignalCompleted}
}

// NewSignal returns a signal for work that has not been submitted yet.
func NewSignal() *Signal {
	return &Signal{state: SignalNotSubmitted}
}

// NewPendingSignal returns a signal that completes with fence. release runs
// once, after the fence is observed signaled.
func NewPendingSignal(fence driver.Fence, release ...func()) *Signal {
	return &Signal{state: SignalPending, fence: fence, release: release}
}

// Join returns a signal that completes when every input has completed.
// Completed inputs are dropped; joining nothing yields Completed().
func Join(signals ...*Signal) *Signal {
	preds := make([]*Signal, 0, len(signals))
	state := SignalCompleted
	for _, s := range signals {
		if s == nil || s.state == SignalCompleted {
			continue
		}
		preds = append(preds, s)
		if s.state == SignalNotSubmitted {
			state = SignalNotSubmitted
		} else if state == SignalCompleted {
			state = SignalPending
		}
	}
	switch len(preds) {
	case 0:
		return Completed()
	case 1:
		return preds[0]
	}
	return &Signal{state: state, preds: preds}
}

func (s *Signal) State() SignalState {
	return s.state
}

// submitted moves a not yet submitted signal to pending on fence.
func (s *Signal) submitted(fence driver.Fence, release ...func()) *Signal {
	s.state = SignalPending
	s.fence = fence
	s.release = append(s.release, release...)
	return s
}

// Poll reports whether the work has completed without blocking. Completed
// predecessors are pruned and their resources released.
func (s *Signal) Poll() (bool, error) {
	switch s.state {
	case SignalCompleted:
		return true, nil
	case SignalNotSubmitted:
		return false, nil
	}

	done := true
	remaining := s.preds[:0]
	for _, p := range s.preds {
		ok, err := p.Poll()
		if err != nil {
			return false, err
		}
		if !ok {
			remaining = append(remaining, p)
			done = false
		}
	}
	s.preds = remaining

	if s.fence != nil {
		signaled, err := s.fence.Status()
		if err != nil {
			return false, err
		}
		done = done && signaled
	}

	if done {
		s.complete()
	}
	return done, nil
}

// Wait blocks until the work has completed or timeout nanoseconds pass
// on one of the fences. Work that was never submitted is not waited on.
func (s *Signal) Wait(timeout uint64) error {
	if s.state != SignalPending {
		return nil
	}
	for _, p := range s.preds {
		if err := p.Wait(timeout); err != nil {
			return err
		}
	}
	if s.fence != nil {
		if err := s.fence.Wait(timeout); err != nil {
			return err
		}
	}
	s.complete()
	return nil
}

func (s *Signal) complete() {
	s.state = SignalCompleted
	s.fence = nil
	s.preds = nil
	release := s.release
	s.release = nil
	for _, fn := range release {
		fn()
	}
}
