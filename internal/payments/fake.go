package payments

import (
	"context"
	"sync"

	id "conveyr/pkg/domain"
)

// Fake records executed instructions in memory. Tests can inject failures
// per release to drive the retry path.
type Fake struct {
	mu       sync.Mutex
	executed []Instruction
	failures map[id.ReleaseID]error
}

func NewFake() *Fake {
	return &Fake{failures: make(map[id.ReleaseID]error)}
}

// FailWith makes the next Execute calls for the given release return err.
// Pass nil to clear the failure.
func (f *Fake) FailWith(releaseID id.ReleaseID, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, releaseID)
		return
	}
	f.failures[releaseID] = err
}

func (f *Fake) Execute(_ context.Context, instruction Instruction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[instruction.ReleaseID]; ok {
		return err
	}
	f.executed = append(f.executed, instruction)
	return nil
}

// Executed returns a copy of the instructions executed so far.
func (f *Fake) Executed() []Instruction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Instruction, len(f.executed))
	copy(out, f.executed)
	return out
}

// ExecutedFor counts executions recorded for one release.
func (f *Fake) ExecutedFor(releaseID id.ReleaseID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ins := range f.executed {
		if ins.ReleaseID == releaseID {
			n++
		}
	}
	return n
}
