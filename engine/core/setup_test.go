package core_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/spaghettifunk/snow/engine/core"
)

func TestSetupChainRunsInOrder(t *testing.T) {
	var order []string
	step := func(name string) func() error {
		return func() error {
			order = append(order, name)
			return nil
		}
	}

	chain := core.NewSetupChain().
		Add("window", step("window"), nil).
		Add("instance", step("instance"), nil).
		Add("device", step("device"), nil)

	if err := chain.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := []string{"window", "instance", "device"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("run order = %v, want %v", order, want)
	}
	if !reflect.DeepEqual(chain.Completed(), want) {
		t.Errorf("completed = %v, want %v", chain.Completed(), want)
	}
}

func TestSetupChainTearsDownPartialState(t *testing.T) {
	var torn []string
	teardown := func(name string) func() error {
		return func() error {
			torn = append(torn, name)
			return nil
		}
	}
	errBoom := errors.New("boom")
	swapchainRan := false

	chain := core.NewSetupChain().
		Add("instance", func() error { return nil }, teardown("instance")).
		Add("device", func() error { return nil }, teardown("device")).
		Add("surface", func() error { return errBoom }, teardown("surface")).
		Add("swapchain", func() error { swapchainRan = true; return nil }, teardown("swapchain"))

	err := chain.Run()
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped errBoom, got %v", err)
	}
	if swapchainRan {
		t.Error("steps after the failure must not run")
	}
	want := []string{"device", "instance"}
	if !reflect.DeepEqual(torn, want) {
		t.Errorf("teardown order = %v, want %v", torn, want)
	}
	if len(chain.Completed()) != 0 {
		t.Errorf("completed should be empty after teardown, got %v", chain.Completed())
	}
}

func TestSetupChainTeardownContinuesAfterError(t *testing.T) {
	var torn []string
	errFirst := errors.New("first")

	chain := core.NewSetupChain().
		Add("a", func() error { return nil }, func() error { torn = append(torn, "a"); return nil }).
		Add("b", func() error { return nil }, func() error { torn = append(torn, "b"); return errFirst })

	if err := chain.Run(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if err := chain.Teardown(); !errors.Is(err, errFirst) {
		t.Errorf("expected errFirst, got %v", err)
	}
	if !reflect.DeepEqual(torn, []string{"b", "a"}) {
		t.Errorf("teardown order = %v", torn)
	}
}
