package core

import "fmt"

// SetupStep is one stage of a fallible initialization chain. Run builds the
// stage, Teardown releases it and may be nil.
type SetupStep struct {
	Name     string
	Run      func() error
	Teardown func() error
}

// SetupChain runs steps in order and keeps track of which ones completed, so
// a failure in the middle releases only what was actually built.
type SetupChain struct {
	steps     []SetupStep
	completed []SetupStep
}

func NewSetupChain() *SetupChain {
	return &SetupChain{}
}

func (sc *SetupChain) Add(name string, run func() error, teardown func() error) *SetupChain {
	sc.steps = append(sc.steps, SetupStep{Name: name, Run: run, Teardown: teardown})
	return sc
}

// Run executes the pending steps. On the first failure the completed steps
// are torn down in reverse order and the failure is returned.
func (sc *SetupChain) Run() error {
	pending := sc.steps[len(sc.completed):]
	for _, step := range pending {
		LogDebug("setup: %s", step.Name)
		if err := step.Run(); err != nil {
			if tdErr := sc.Teardown(); tdErr != nil {
				LogError("teardown after failed %s: %s", step.Name, tdErr)
			}
			return fmt.Errorf("%s: %w", step.Name, err)
		}
		sc.completed = append(sc.completed, step)
	}
	return nil
}

// Teardown releases completed steps in reverse order. Every step is torn
// down even if an earlier teardown fails; the first error is returned.
func (sc *SetupChain) Teardown() error {
	var first error
	for i := len(sc.completed) - 1; i >= 0; i-- {
		step := sc.completed[i]
		if step.Teardown == nil {
			continue
		}
		LogDebug("teardown: %s", step.Name)
		if err := step.Teardown(); err != nil {
			LogError("teardown %s: %s", step.Name, err)
			if first == nil {
				first = fmt.Errorf("%s: %w", step.Name, err)
			}
		}
	}
	sc.completed = nil
	sc.steps = sc.steps[:0]
	return first
}

// Completed returns the names of the steps that are currently built.
func (sc *SetupChain) Completed() []string {
	names := make([]string, 0, len(sc.completed))
	for _, s := range sc.completed {
		names = append(names, s.Name)
	}
	return names
}
