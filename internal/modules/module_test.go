package modules

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tt/piano/internal/state"
)

// tickModule counts cycles and fails on demand.
type tickModule struct {
	name   string
	cycles atomic.Int64
	fail   atomic.Bool
}

func (m *tickModule) Name() string           { return m.name }
func (m *tickModule) Cadence() time.Duration { return 5 * time.Millisecond }

func (m *tickModule) Process(_ *state.State) (any, error) {
	m.cycles.Add(1)
	if m.fail.Load() {
		return nil, errors.New("induced failure")
	}
	return m.cycles.Load(), nil
}

func TestRunnerPublishesAndStops(t *testing.T) {
	st := newTestState()
	m := &tickModule{name: "tick"}
	r := NewRunner(m, st)
	r.Start()

	deadline := time.After(time.Second)
	for {
		if _, ok := st.ModuleOutput("tick"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no output published within a second")
		case <-time.After(time.Millisecond):
		}
	}

	r.Stop()
	after := m.cycles.Load()
	time.Sleep(20 * time.Millisecond)
	if got := m.cycles.Load(); got != after {
		t.Errorf("module still cycling after Stop: %d -> %d", after, got)
	}

	// Stop is idempotent.
	r.Stop()
}

func TestRunnerSurvivesErrors(t *testing.T) {
	st := newTestState()
	m := &tickModule{name: "flaky"}
	m.fail.Store(true)
	r := NewRunner(m, st)
	r.Start()
	defer r.Stop()

	time.Sleep(30 * time.Millisecond)
	if _, ok := st.ModuleOutput("flaky"); ok {
		t.Fatal("failing module must not publish")
	}

	m.fail.Store(false)
	deadline := time.After(5 * time.Second)
	for {
		if _, ok := st.ModuleOutput("flaky"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("runner did not recover after errors stopped")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRunnersAreIsolated(t *testing.T) {
	st := newTestState()
	a := &tickModule{name: "a"}
	b := &tickModule{name: "b"}
	b.fail.Store(true)

	ra, rb := NewRunner(a, st), NewRunner(b, st)
	ra.Start()
	rb.Start()
	defer ra.Stop()
	defer rb.Stop()

	deadline := time.After(time.Second)
	for {
		if _, ok := st.ModuleOutput("a"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("healthy runner starved by a failing sibling")
		case <-time.After(time.Millisecond):
		}
	}
	if _, ok := st.ModuleOutput("b"); ok {
		t.Error("failing module published output")
	}
}
