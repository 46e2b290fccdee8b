package renderer

import (
	"testing"

	"github.com/spaghettifunk/snow/engine/renderer/driver"
	"github.com/spaghettifunk/snow/engine/renderer/driver/drivertest"
)

func newFence(t *testing.T) (driver.Fence, *drivertest.Device) {
	t.Helper()
	pd := drivertest.NewPhysicalDevice("fake", driver.DeviceTypeDiscreteGPU)
	d, err := pd.CreateDevice(0, nil)
	if err != nil {
		t.Fatalf("create device: %s", err)
	}
	f, err := d.CreateFence(false)
	if err != nil {
		t.Fatalf("create fence: %s", err)
	}
	return f, pd.Created
}

func TestJoinOfCompletedIsCompleted(t *testing.T) {
	s := Join(Completed(), Completed(), nil)
	if s.State() != SignalCompleted {
		t.Errorf("state = %s, want completed", s.State())
	}
	if done, err := s.Poll(); err != nil || !done {
		t.Errorf("poll = %v, %v", done, err)
	}
}

func TestJoinKeepsSinglePending(t *testing.T) {
	fence, _ := newFence(t)
	pending := NewPendingSignal(fence)

	if got := Join(Completed(), pending); got != pending {
		t.Error("joining one pending signal with completed ones must return it")
	}
}

func TestJoinState(t *testing.T) {
	fence, _ := newFence(t)
	pending := NewPendingSignal(fence)

	if got := Join(pending, NewSignal()).State(); got != SignalNotSubmitted {
		t.Errorf("join with unsubmitted work = %s, want not-submitted", got)
	}
	if got := Join(pending, NewPendingSignal(fence)).State(); got != SignalPending {
		t.Errorf("join of pending work = %s, want pending", got)
	}
}

func TestSignalReleasesOnCompletion(t *testing.T) {
	fence, device := newFence(t)
	// Only fences attached to a submission are completed by the device.
	if err := device.Queue().Submit(driver.SubmitInfo{Fence: fence}); err != nil {
		t.Fatalf("submit: %s", err)
	}

	released := 0
	s := NewPendingSignal(fence, func() { released++ })
	joined := Join(s, Completed())

	if done, _ := joined.Poll(); done || released != 0 {
		t.Fatalf("signal completed before the fence, released %d", released)
	}
	device.CompleteAll()
	if done, err := joined.Poll(); err != nil || !done {
		t.Fatalf("poll = %v, %v after completion", done, err)
	}
	if _, err := joined.Poll(); err != nil {
		t.Fatalf("poll of a completed signal: %s", err)
	}
	if released != 1 {
		t.Errorf("released %d times, want once", released)
	}
}

func TestSignalWait(t *testing.T) {
	first, _ := newFence(t)
	second, _ := newFence(t)
	released := 0
	joined := Join(
		NewPendingSignal(first, func() { released++ }),
		NewPendingSignal(second, func() { released++ }),
	)

	if err := joined.Wait(driver.NoTimeout); err != nil {
		t.Fatalf("wait: %s", err)
	}
	if joined.State() != SignalCompleted || released != 2 {
		t.Errorf("state = %s, released = %d", joined.State(), released)
	}
}

func TestNotSubmittedSignalNeverCompletesByPolling(t *testing.T) {
	s := NewSignal()
	if done, err := s.Poll(); err != nil || done {
		t.Errorf("poll = %v, %v for unsubmitted work", done, err)
	}
	fence, _ := newFence(t)
	s.submitted(fence)
	if s.State() != SignalPending {
		t.Errorf("state after submission = %s", s.State())
	}
}
