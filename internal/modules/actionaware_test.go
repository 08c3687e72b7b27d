package modules

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/types"
)

func TestActionAwarenessNoExpectation(t *testing.T) {
	st := newTestState()
	out, err := NewActionAwareness(0, nil).Process(st)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if s := out.(ActionOutput).Status; s != "no_expectation" {
		t.Errorf("status = %q", s)
	}
}

func TestActionAwarenessMineBlockSuccess(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})

	a := NewActionAwareness(0, nil)
	a.SetExpectation(st, "mine_block", types.ExpectedChanges{})

	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 2}})
	out, _ := a.Process(st)
	ao := out.(ActionOutput)

	if ao.Status != "success" {
		t.Fatalf("status = %q, want success", ao.Status)
	}
	if ao.MatchScore < matchThreshold {
		t.Errorf("score = %v, want >= %v", ao.MatchScore, matchThreshold)
	}
	if rate := st.SuccessRate(); rate != 1.0 {
		t.Errorf("success rate = %v, want 1.0 after a success from 1.0", rate)
	}

	// The expectation is consumed.
	out, _ = a.Process(st)
	if s := out.(ActionOutput).Status; s != "no_expectation" {
		t.Errorf("second cycle status = %q", s)
	}
}

func TestActionAwarenessMismatchWritesCorrection(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})

	a := NewActionAwareness(0, nil)
	a.SetExpectation(st, "mine_block", types.ExpectedChanges{})

	// Same inventory: mining produced nothing.
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})

	out, _ := a.Process(st)
	ao := out.(ActionOutput)
	if ao.Status != "mismatch" {
		t.Fatalf("status = %q, want mismatch", ao.Status)
	}

	wantRate := 1.0 * (1 - successRateAlpha)
	if rate := st.SuccessRate(); math.Abs(rate-wantRate) > 1e-9 {
		t.Errorf("success rate = %v, want %v", rate, wantRate)
	}

	working := st.Memories(types.TierWorking)
	found := false
	for _, m := range working {
		if m.Type == types.EventActionFailure && strings.Contains(m.Event, "mine_block") {
			found = true
		}
	}
	if !found {
		t.Errorf("working memory = %+v, want a mine_block failure correction", working)
	}
}

func TestActionAwarenessMovement(t *testing.T) {
	st := newTestState()
	st.ApplyObservation(types.Observation{Location: &types.Location{X: 0, Y: 64, Z: 0}})

	a := NewActionAwareness(0, nil)
	a.SetExpectation(st, "move_forward", types.ExpectedChanges{})

	st.ApplyObservation(types.Observation{Location: &types.Location{X: 1, Y: 64, Z: 0}})
	out, _ := a.Process(st)
	if s := out.(ActionOutput).Status; s != "success" {
		t.Errorf("status = %q, want success after moving", s)
	}
}

func TestActionAwarenessUnverifiableActionsPass(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, nil)

	for _, action := range []string{"wait", "turn_left", "look_around", "select_slot_3"} {
		a := NewActionAwareness(0, nil)
		a.SetExpectation(st, action, types.ExpectedChanges{})
		out, _ := a.Process(st)
		ao := out.(ActionOutput)
		if ao.Status != "success" || ao.MatchScore != 0.7 {
			t.Errorf("%s: status=%q score=%v, want neutral success", action, ao.Status, ao.MatchScore)
		}
	}
}

func TestActionAwarenessTimeout(t *testing.T) {
	st := newTestState()

	a := NewActionAwareness(0, nil)
	a.timeout = 10 * time.Millisecond
	a.SetExpectation(st, "mine_block", types.ExpectedChanges{})

	// No observation yet and the deadline has not passed.
	out, _ := a.Process(st)
	if s := out.(ActionOutput).Status; s != "no_observation" {
		t.Errorf("status = %q, want no_observation before the deadline", s)
	}
	if rate := st.SuccessRate(); rate != 1.0 {
		t.Errorf("success rate = %v, must not change before resolution", rate)
	}

	time.Sleep(20 * time.Millisecond)
	out, _ = a.Process(st)
	if s := out.(ActionOutput).Status; s != "timeout" {
		t.Errorf("status = %q, want timeout past the deadline", s)
	}
	if rate := st.SuccessRate(); rate >= 1.0 {
		t.Errorf("success rate = %v, want a decrease after timeout", rate)
	}
}

func TestActionAwarenessJournalsOutcome(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})

	jrnl := journal.New(t.TempDir())
	a := NewActionAwareness(0, jrnl)
	a.SetExpectation(st, "mine_block", types.ExpectedChanges{})

	// Same inventory: the resolution is a mismatch.
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})
	a.Process(st)

	entries, err := jrnl.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Type != journal.EntryOutcome || e.Summary != "mine_block" || e.AgentID != "a1" {
		t.Errorf("entry = %+v, want a mine_block outcome for a1", e)
	}
	if e.Data["status"] != "mismatch" {
		t.Errorf("status = %v, want mismatch", e.Data["status"])
	}
}

func TestActionAwarenessItemSpecificExpectation(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}})

	a := NewActionAwareness(0, nil)
	a.SetExpectation(st, "mine_block", types.ExpectedChanges{InventoryChange: map[string]int{"wood": 1}})

	// Total inventory grew, but not the named item.
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 1}, {Item: "dirt", Qty: 2}})
	out, _ := a.Process(st)
	if s := out.(ActionOutput).Status; s != "mismatch" {
		t.Errorf("status = %q, want mismatch when wood did not change", s)
	}

	a.SetExpectation(st, "mine_block", types.ExpectedChanges{InventoryChange: map[string]int{"wood": 1}})
	observe(st, 20, 20, nil, []types.ItemStack{{Item: "wood", Qty: 2}, {Item: "dirt", Qty: 2}})
	out, _ = a.Process(st)
	if s := out.(ActionOutput).Status; s != "success" {
		t.Errorf("status = %q, want success when wood grew", s)
	}
}

func TestActionAwarenessHealthExpectation(t *testing.T) {
	st := newTestState()
	observe(st, 10, 20, nil, nil)

	a := NewActionAwareness(0, nil)
	a.SetExpectation(st, "eat_food", types.ExpectedChanges{HealthChange: 1})

	observe(st, 12, 20, nil, nil)
	out, _ := a.Process(st)
	if s := out.(ActionOutput).Status; s != "success" {
		t.Errorf("status = %q, want success when health rose as expected", s)
	}

	a.SetExpectation(st, "eat_food", types.ExpectedChanges{HealthChange: 1})
	observe(st, 11, 20, nil, nil)
	out, _ = a.Process(st)
	if s := out.(ActionOutput).Status; s != "mismatch" {
		t.Errorf("status = %q, want mismatch when health fell", s)
	}
}

func TestSuccessRateStaysBounded(t *testing.T) {
	st := newTestState()
	observe(st, 20, 20, nil, nil)

	a := NewActionAwareness(0, nil)

	prev := st.SuccessRate()
	for i := 0; i < 10; i++ {
		a.SetExpectation(st, "mine_block", types.ExpectedChanges{})
		a.Process(st)

		rate := st.SuccessRate()
		if rate < 0 || rate > 1 {
			t.Fatalf("rate = %v out of bounds", rate)
		}
		if rate >= prev {
			t.Fatalf("rate did not decrease after failure %d: %v -> %v", i, prev, rate)
		}
		prev = rate
	}

	want := math.Pow(1-successRateAlpha, 10)
	if got := st.SuccessRate(); math.Abs(got-want) > 1e-9 {
		t.Errorf("rate after 10 failures = %v, want %v", got, want)
	}
}
