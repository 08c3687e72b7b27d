// Package agent wires one cognitive stack together: the shared state,
// the five module runners, the bottleneck controller and long-term
// persistence. The Manager owns a fleet of agents and gives each
// controller a lock-safe view of its peers.
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tt/piano/internal/controller"
	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/ltm"
	"github.com/tt/piano/internal/modules"
	"github.com/tt/piano/internal/oracle"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// Options tunes one agent's loops. Zero values select the defaults.
type Options struct {
	DecisionInterval time.Duration
	OracleTimeout    time.Duration

	PerceptionCadence    time.Duration
	SocialCadence        time.Duration
	GoalsCadence         time.Duration
	ConsolidationCadence time.Duration
	ActionAwareCadence   time.Duration
}

// Agent is one autonomous entity: shared state plus the loops that read
// and write it.
type Agent struct {
	state      *state.State
	runners    []*modules.Runner
	controller *controller.Controller
	verifier   *modules.ActionAwareness
	journal    *journal.Journal
	running    bool
}

// New assembles an agent (not yet running) from its identity and the
// shared infrastructure. store and jrnl may be nil.
func New(identity state.Identity, o oracle.Oracle, store *ltm.Store, jrnl *journal.Journal, peers controller.PeerLister, opts Options) *Agent {
	st := state.New(identity)

	verifier := modules.NewActionAwareness(opts.ActionAwareCadence, jrnl)
	mods := []modules.Module{
		modules.NewPerception(opts.PerceptionCadence),
		modules.NewSocial(opts.SocialCadence),
		modules.NewGoals(o, opts.GoalsCadence, opts.OracleTimeout),
		modules.NewConsolidation(store, opts.ConsolidationCadence),
		verifier,
	}

	a := &Agent{
		state:      st,
		controller: controller.New(st, o, jrnl, peers, opts.DecisionInterval, opts.OracleTimeout),
		verifier:   verifier,
		journal:    jrnl,
	}
	for _, m := range mods {
		a.runners = append(a.runners, modules.NewRunner(m, st))
	}
	return a
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.state.Identity().ID }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.state.Identity().Name }

// Restore loads the agent's persisted long-term memories into state.
func (a *Agent) Restore(store *ltm.Store) error {
	if store == nil {
		return nil
	}
	items, err := store.Load(a.ID())
	if err != nil {
		return fmt.Errorf("load long-term memories: %w", err)
	}
	for _, m := range items {
		a.state.AddMemory(types.TierLongTerm, m)
	}
	if len(items) > 0 {
		logging.Info("agent", "[%s] restored %d long-term memories", a.Name(), len(items))
	}
	return nil
}

// Start launches all module runners and the controller.
func (a *Agent) Start() {
	if a.running {
		return
	}
	for _, r := range a.runners {
		r.Start()
	}
	a.controller.Start()
	a.running = true
	logging.Info("agent", "[%s] started", a.Name())
}

// Stop signals every loop and joins them all before returning, so the
// state can be torn down afterwards.
func (a *Agent) Stop() {
	if !a.running {
		return
	}
	a.controller.Stop()
	for _, r := range a.runners {
		r.Stop()
	}
	a.running = false
	logging.Info("agent", "[%s] stopped", a.Name())
}

// HandleObservation feeds one environment observation into the state and
// notes it in working memory.
func (a *Agent) HandleObservation(obs types.Observation) {
	a.state.ApplyObservation(obs)
	a.state.AddMemory(types.TierWorking, types.MemoryItem{
		Event: "Received environment observation",
		Type:  types.EventObservation,
	})
}

// HandleActionResult records the outcome the environment reported for an
// executed action.
func (a *Agent) HandleActionResult(action string, success bool) {
	a.state.SetLastAction(types.ActionResult{Action: action, Success: success})

	outcome := "succeeded"
	eventType := types.EventActionResult
	if !success {
		outcome = "failed"
		eventType = types.EventActionFailure
	}
	a.state.AddMemory(types.TierWorking, types.MemoryItem{
		Event: fmt.Sprintf("Action '%s' %s", action, outcome),
		Type:  eventType,
	})
}

// SetExpectation arms the verifier for a dispatched action. A zero changes
// value selects the action's default expectation.
func (a *Agent) SetExpectation(action string, changes types.ExpectedChanges) {
	a.verifier.SetExpectation(a.state, action, changes)
}

// OverrideGoal injects an operator goal at maximum priority.
func (a *Agent) OverrideGoal(description string) types.Goal {
	goal := types.Goal{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    1.0,
		Source:      types.GoalSourceUser,
		CreatedAt:   time.Now(),
	}
	a.state.InsertGoal(goal)
	if a.journal != nil {
		if err := a.journal.LogGoal(a.ID(), description, string(types.GoalSourceUser), 1.0); err != nil {
			logging.Warn("agent", "journal write failed: %v", err)
		}
	}
	return goal
}

// Decision returns the latest published decision, nil before the first
// cycle.
func (a *Agent) Decision() *types.Decision {
	return a.state.Decision()
}

// Summary returns the agent's inspectable state projection.
func (a *Agent) Summary() state.Summary {
	return a.state.Summary()
}

// PeerSummary returns the public view other agents' controllers see.
func (a *Agent) PeerSummary() types.PeerSummary {
	snap := a.state.Snapshot()
	p := types.PeerSummary{
		Name:       snap.Identity.Name,
		Location:   snap.Location,
		LastAction: "?",
	}
	if snap.LastAction != nil {
		p.LastAction = snap.LastAction.Action
	}
	return p
}
