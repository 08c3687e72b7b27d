package modules

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

const (
	expectationTimeout = 5 * time.Second
	matchThreshold     = 0.6
	successRateAlpha   = 0.1
)

// ActionOutput reports one verification cycle.
type ActionOutput struct {
	Status      string  `json:"status"` // no_expectation, no_observation, timeout, success, mismatch
	Action      string  `json:"action,omitempty"`
	MatchScore  float64 `json:"match_score,omitempty"`
	SuccessRate float64 `json:"success_rate"`
}

// pendingExpectation pairs the expected changes with the world snapshot
// taken when the action was dispatched, so verification compares against
// the pre-action world rather than the current one.
type pendingExpectation struct {
	exp      types.Expectation
	baseline state.Snapshot
}

// ActionAwareness verifies that dispatched actions actually changed the
// world as expected, and feeds mismatches back into working memory so the
// agent can reason about its own failures.
type ActionAwareness struct {
	cadence time.Duration
	timeout time.Duration
	journal *journal.Journal

	mu      sync.Mutex
	pending *pendingExpectation
}

// NewActionAwareness creates the verifier. Zero cadence means the default
// 500ms. jrnl may be nil.
func NewActionAwareness(cadence time.Duration, jrnl *journal.Journal) *ActionAwareness {
	if cadence <= 0 {
		cadence = 500 * time.Millisecond
	}
	return &ActionAwareness{cadence: cadence, timeout: expectationTimeout, journal: jrnl}
}

func (a *ActionAwareness) Name() string           { return "action_awareness" }
func (a *ActionAwareness) Cadence() time.Duration { return a.cadence }

// SetExpectation records what the given action should change, along with
// the current world state as the comparison baseline. A zero changes value
// selects the action's default expectation. Replaces any unresolved
// expectation.
func (a *ActionAwareness) SetExpectation(st *state.State, action string, changes types.ExpectedChanges) {
	if changes.IsZero() {
		changes = expectedChanges(action)
	}
	p := &pendingExpectation{
		exp: types.Expectation{
			Action:   action,
			Expected: changes,
			SetAt:    time.Now(),
		},
		baseline: st.Snapshot(),
	}
	a.mu.Lock()
	a.pending = p
	a.mu.Unlock()
}

// Process compares the current world against the pending expectation.
func (a *ActionAwareness) Process(st *state.State) (any, error) {
	a.mu.Lock()
	p := a.pending
	a.mu.Unlock()

	if p == nil {
		return ActionOutput{Status: "no_expectation", SuccessRate: st.SuccessRate()}, nil
	}

	if time.Since(p.exp.SetAt) > a.timeout {
		return a.resolve(st, p, 0, "timeout"), nil
	}

	snap := st.Snapshot()
	if !snap.HasObservation {
		return ActionOutput{Status: "no_observation", Action: p.exp.Action, SuccessRate: snap.SuccessRate}, nil
	}

	score := matchScore(p, snap)
	if score >= matchThreshold {
		return a.resolve(st, p, score, "success"), nil
	}
	return a.resolve(st, p, score, "mismatch"), nil
}

// resolve clears the expectation, updates the rolling success rate and,
// on failure, writes a correction into working memory.
func (a *ActionAwareness) resolve(st *state.State, p *pendingExpectation, score float64, status string) ActionOutput {
	a.mu.Lock()
	if a.pending == p {
		a.pending = nil
	}
	a.mu.Unlock()

	success := status == "success"
	rate := st.UpdateSuccessRate(success, successRateAlpha)

	if a.journal != nil {
		if err := a.journal.LogOutcome(st.Identity().ID, p.exp.Action, status, score); err != nil {
			logging.Warn("action_awareness", "journal write failed: %v", err)
		}
	}

	if !success {
		st.AddMemory(types.TierWorking, types.MemoryItem{
			Event: fmt.Sprintf("The %s did not complete as expected. I should try a different approach.", p.exp.Action),
			Type:  types.EventActionFailure,
		})
	}

	return ActionOutput{Status: status, Action: p.exp.Action, MatchScore: score, SuccessRate: rate}
}

// expectedChanges maps an action to the world changes it should produce.
func expectedChanges(action string) types.ExpectedChanges {
	switch action {
	case "mine_block":
		return types.ExpectedChanges{InventoryChange: map[string]int{"any": 1}}
	case "pick_up_item":
		return types.ExpectedChanges{InventoryChange: map[string]int{"any": 1}}
	case "craft_item":
		return types.ExpectedChanges{InventoryChange: map[string]int{"any": 1}}
	case "place_block":
		return types.ExpectedChanges{InventoryChange: map[string]int{"any": -1}}
	case "move_forward", "jump_forward":
		return types.ExpectedChanges{LocationChange: &types.Location{X: 1}}
	default:
		return types.ExpectedChanges{}
	}
}

// matchScore compares the current world against the baseline, scoring
// each expected change that materialized. Actions with no observable
// expectation score a neutral 0.7.
func matchScore(p *pendingExpectation, snap state.Snapshot) float64 {
	checks := 0
	matched := 0.0

	for item, delta := range p.exp.Expected.InventoryChange {
		checks++
		var base, cur int
		if item == "any" {
			base, cur = itemCount(p.baseline.Inventory), itemCount(snap.Inventory)
		} else {
			base, cur = stackQty(p.baseline.Inventory, item), stackQty(snap.Inventory, item)
		}
		if delta > 0 && cur > base {
			matched++
		}
		if delta < 0 && cur < base {
			matched++
		}
	}

	if p.exp.Expected.LocationChange != nil {
		checks++
		moved := math.Abs(snap.Location.X-p.baseline.Location.X) +
			math.Abs(snap.Location.Z-p.baseline.Location.Z)
		if moved > 0.1 {
			matched++
		}
	}

	if p.exp.Expected.HealthChange != 0 {
		checks++
		delta := snap.Health - p.baseline.Health
		if (p.exp.Expected.HealthChange > 0) == (delta > 0) && delta != 0 {
			matched++
		}
	}

	if checks == 0 {
		// Turns, waits and slot selects have no verifiable world effect.
		return 0.7
	}
	return matched / float64(checks)
}

func itemCount(inv []types.ItemStack) int {
	total := 0
	for _, s := range inv {
		total += s.Qty
	}
	return total
}

func stackQty(inv []types.ItemStack, item string) int {
	total := 0
	for _, s := range inv {
		if s.Item == item {
			total += s.Qty
		}
	}
	return total
}
