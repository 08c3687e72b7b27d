package modules

import (
	"testing"
	"time"

	"github.com/tt/piano/internal/ltm"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

func TestConsolidationPromotesSurvivalEvents(t *testing.T) {
	st := newTestState()
	st.AddMemory(types.TierWorking, types.MemoryItem{Event: "Took damage from a zombie", Type: types.EventDamageTaken})
	st.AddMemory(types.TierWorking, types.MemoryItem{Event: "Walked a few steps", Type: types.EventMovement})

	c := NewConsolidation(nil, 0)
	out, err := c.Process(st)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	co := out.(ConsolidationOutput)

	if co.PromotedToShortTerm != 1 {
		t.Errorf("promoted to short-term = %d, want 1", co.PromotedToShortTerm)
	}

	short := st.Memories(types.TierShortTerm)
	if len(short) != 1 || short[0].Type != types.EventDamageTaken {
		t.Fatalf("short-term = %+v, want only the damage event", short)
	}
	if short[0].Importance < 0.8 {
		t.Errorf("importance = %v, want >= 0.8 for survival event", short[0].Importance)
	}

	// Promotion moves items: the damage event left working memory.
	working := st.Memories(types.TierWorking)
	if len(working) != 1 || working[0].Type != types.EventMovement {
		t.Errorf("working = %+v, want only the routine event", working)
	}
}

func TestConsolidationGoalRelevanceBoost(t *testing.T) {
	goals := []types.Goal{{Description: "Gather wood from the forest"}}

	routine := types.MemoryItem{Event: "Walked past a hill", Type: types.EventRoutine}
	relevant := types.MemoryItem{Event: "Spotted wood near the forest edge", Type: types.EventRoutine}

	if s := scoreImportance(routine, goals); s != 0.2 {
		t.Errorf("routine score = %v, want base 0.2", s)
	}
	if s := scoreImportance(relevant, goals); s < 0.6-1e-9 {
		t.Errorf("relevant score = %v, want base + two keyword overlaps", s)
	}

	capped := types.MemoryItem{Event: "Gather wood forest", Type: types.EventDamageTaken}
	if s := scoreImportance(capped, goals); s != 1.0 {
		t.Errorf("score = %v, want capped at 1.0", s)
	}
}

func TestConsolidationPersistsLongTerm(t *testing.T) {
	store, err := ltm.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	st := newTestState()
	st.AddMemory(types.TierWorking, types.MemoryItem{Event: "Nearly died to a creeper", Type: types.EventNearDeath})

	c := NewConsolidation(store, 0)
	out, _ := c.Process(st)
	co := out.(ConsolidationOutput)

	if co.PromotedToLongTerm != 1 {
		t.Fatalf("promoted to long-term = %d, want 1", co.PromotedToLongTerm)
	}

	n, err := store.Count(st.Identity().ID)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("persisted = %d, want 1", n)
	}

	// A second pass must not re-promote or re-persist the same memory.
	out, _ = c.Process(st)
	if co := out.(ConsolidationOutput); co.PromotedToLongTerm != 0 {
		t.Errorf("second pass promoted %d, want 0", co.PromotedToLongTerm)
	}
}

func TestConsolidationDecay(t *testing.T) {
	st := newTestState()
	old := time.Now().Add(-time.Hour)
	st.AddMemory(types.TierWorking, types.MemoryItem{Event: "Stale step", Type: types.EventMovement, Timestamp: old})
	st.AddMemory(types.TierShortTerm, types.MemoryItem{Event: "Stale encounter", Type: types.EventNewAgentMet, Timestamp: old, Importance: 0.5})
	st.AddMemory(types.TierWorking, types.MemoryItem{Event: "Fresh step", Type: types.EventMovement})

	out, _ := NewConsolidation(nil, 0).Process(st)
	co := out.(ConsolidationOutput)

	if co.WorkingDecayed != 1 || co.ShortTermDecayed != 1 {
		t.Errorf("decayed = %d/%d, want 1/1", co.WorkingDecayed, co.ShortTermDecayed)
	}
	if co.Stats.Working != 1 {
		t.Errorf("working after decay = %d, want 1", co.Stats.Working)
	}
}

func TestConsolidationKeyMemory(t *testing.T) {
	snap := state.Snapshot{}
	if k := keyMemory(snap); k != "No recent memories" {
		t.Errorf("empty key = %q", k)
	}

	snap.Working = []types.MemoryItem{{Event: "first"}, {Event: "latest"}}
	if k := keyMemory(snap); k != "latest" {
		t.Errorf("working key = %q, want freshest item", k)
	}

	snap.ShortTerm = []types.MemoryItem{
		{Event: "minor", Importance: 0.4},
		{Event: "major", Importance: 0.9},
	}
	if k := keyMemory(snap); k != "major" {
		t.Errorf("short-term key = %q, want highest importance", k)
	}
}
