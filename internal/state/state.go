// Package state holds the blackboard: one shared mutable record per agent
// that every cognitive module reads and writes. All access goes through
// accessor methods guarded by a single mutex, so no caller ever observes a
// torn read. The lock is only ever held for the duration of one accessor
// call, never across an oracle invocation or a sleep.
package state

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tt/piano/internal/types"
)

// Identity is the immutable part of an agent's state.
type Identity struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Role   int      `json:"role"`
	Traits []string `json:"traits"`
}

// State is the shared mental state of one agent: identity, current world
// snapshot, tiered memory, goals, relationships, module outputs and the
// latest bottleneck decision. Owned exclusively by its agent.
type State struct {
	mu sync.Mutex

	identity Identity

	// Current world snapshot, replaced wholesale per observation.
	location       types.Location
	health         float64
	hunger         float64
	inventory      []types.ItemStack
	entities       []types.Entity
	nearbyAgents   []types.Entity
	hasObservation bool

	// Multi-timescale memory.
	working   []types.MemoryItem
	shortTerm []types.MemoryItem
	longTerm  []types.MemoryItem

	goals          []types.Goal
	relationships  map[string]float64
	perceivedRoles map[string]string

	moduleOutputs map[string]types.ModuleOutput

	decision    *types.Decision
	lastAction  *types.ActionResult
	successRate float64
}

// New creates a fresh agent state with full vitals and a perfect success
// rate, matching an agent that has not acted yet.
func New(identity Identity) *State {
	return &State{
		identity:       identity,
		health:         types.FullVital,
		hunger:         types.FullVital,
		relationships:  make(map[string]float64),
		perceivedRoles: make(map[string]string),
		moduleOutputs:  make(map[string]types.ModuleOutput),
		successRate:    1.0,
	}
}

// Identity returns the immutable identity.
func (s *State) Identity() Identity {
	id := s.identity
	id.Traits = append([]string(nil), s.identity.Traits...)
	return id
}

// ApplyObservation replaces the world snapshot atomically from a raw
// observation. Missing fields fall back to defaults: vitals keep their last
// value, inventory and entities are replaced with empty lists. Entities
// whose name follows the "Agent..." convention are filtered into the
// nearby-agent list.
func (s *State) ApplyObservation(obs types.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obs.Location != nil {
		s.location = *obs.Location
	}
	if obs.Health != nil {
		s.health = *obs.Health
	}
	if obs.Hunger != nil {
		s.hunger = *obs.Hunger
	}
	s.inventory = append([]types.ItemStack(nil), obs.Inventory...)
	s.entities = append([]types.Entity(nil), obs.Entities...)

	s.nearbyAgents = s.nearbyAgents[:0]
	for _, e := range s.entities {
		if IsAgentName(e.Name) {
			s.nearbyAgents = append(s.nearbyAgents, e)
		}
	}
	s.hasObservation = true
}

// IsAgentName reports whether an entity name follows the agent naming
// convention used by the environment.
func IsAgentName(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), "agent")
}

// AddMemory appends an item to a tier, stamping the timestamp if unset and
// enforcing the tier cap: working drops its oldest entry, short-term drops
// its lowest-importance entry. Long-term has no cap.
func (s *State) AddMemory(tier types.MemoryTier, item types.MemoryItem) {
	if item.Timestamp.IsZero() {
		item.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch tier {
	case types.TierWorking:
		s.working = append(s.working, item)
		if len(s.working) > types.WorkingCap {
			s.working = s.working[len(s.working)-types.WorkingCap:]
		}
	case types.TierShortTerm:
		s.shortTerm = append(s.shortTerm, item)
		if len(s.shortTerm) > types.ShortTermCap {
			dropLowestImportance(&s.shortTerm)
		}
	case types.TierLongTerm:
		s.longTerm = append(s.longTerm, item)
	}
}

// dropLowestImportance removes the single lowest-importance entry, oldest
// first on ties, preserving order of the rest.
func dropLowestImportance(items *[]types.MemoryItem) {
	lowest := 0
	for i, m := range *items {
		if m.Importance < (*items)[lowest].Importance {
			lowest = i
		}
	}
	*items = append((*items)[:lowest], (*items)[lowest+1:]...)
}

// Memories returns a copy of one tier.
func (s *State) Memories(tier types.MemoryTier) []types.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch tier {
	case types.TierWorking:
		return append([]types.MemoryItem(nil), s.working...)
	case types.TierShortTerm:
		return append([]types.MemoryItem(nil), s.shortTerm...)
	case types.TierLongTerm:
		return append([]types.MemoryItem(nil), s.longTerm...)
	}
	return nil
}

// PromoteWorking moves working-memory items whose computed importance
// reaches minImportance into short-term, assigning the importance. Runs in
// one locked step so a concurrent AddMemory can't be lost between read and
// write. The scorer must be pure computation.
func (s *State) PromoteWorking(minImportance float64, score func(types.MemoryItem) float64) []types.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted []types.MemoryItem
	remaining := s.working[:0]
	for _, m := range s.working {
		imp := score(m)
		if imp >= minImportance {
			m.Importance = imp
			s.shortTerm = append(s.shortTerm, m)
			if len(s.shortTerm) > types.ShortTermCap {
				dropLowestImportance(&s.shortTerm)
			}
			promoted = append(promoted, m)
		} else {
			remaining = append(remaining, m)
		}
	}
	s.working = remaining
	return promoted
}

// PromoteShortTerm copies short-term items at or above minImportance into
// long-term, deduplicated by (event, timestamp). The items stay in
// short-term until they decay. Returns the newly added items so the caller
// can persist them.
func (s *State) PromoteShortTerm(minImportance float64) []types.MemoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.longTerm))
	for _, m := range s.longTerm {
		seen[m.Event+"|"+m.Timestamp.Format(time.RFC3339Nano)] = true
	}

	var promoted []types.MemoryItem
	for _, m := range s.shortTerm {
		if m.Importance < minImportance {
			continue
		}
		key := m.Event + "|" + m.Timestamp.Format(time.RFC3339Nano)
		if seen[key] {
			continue
		}
		seen[key] = true
		s.longTerm = append(s.longTerm, m)
		promoted = append(promoted, m)
	}
	return promoted
}

// DecayMemories drops working items older than workingCutoff and
// short-term items older than shortTermCutoff. Long-term never decays.
func (s *State) DecayMemories(workingCutoff, shortTermCutoff time.Time) (workingDropped, shortTermDropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepW := s.working[:0]
	for _, m := range s.working {
		if m.Timestamp.After(workingCutoff) {
			keepW = append(keepW, m)
		} else {
			workingDropped++
		}
	}
	s.working = keepW

	keepS := s.shortTerm[:0]
	for _, m := range s.shortTerm {
		if m.Timestamp.After(shortTermCutoff) {
			keepS = append(keepS, m)
		} else {
			shortTermDropped++
		}
	}
	s.shortTerm = keepS
	return workingDropped, shortTermDropped
}

// InsertGoal adds a goal, re-sorts by priority descending and trims to the
// cap, evicting the lowest-priority goals. User-sourced goals win ties so an
// operator override lands at the head.
func (s *State) InsertGoal(goal types.Goal) {
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.goals = append([]types.Goal{goal}, s.goals...)
	sortGoals(s.goals)
	if len(s.goals) > types.GoalCap {
		s.goals = s.goals[:types.GoalCap]
	}
}

func sortGoals(goals []types.Goal) {
	sort.SliceStable(goals, func(i, j int) bool {
		if goals[i].Priority != goals[j].Priority {
			return goals[i].Priority > goals[j].Priority
		}
		return goals[i].Source == types.GoalSourceUser && goals[j].Source != types.GoalSourceUser
	})
}

// Goals returns a copy of the current goal list.
func (s *State) Goals() []types.Goal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Goal(nil), s.goals...)
}

// UpdateRelationship applies a delta to a peer's relationship score,
// clamped to [-1, 1], and returns old and new values.
func (s *State) UpdateRelationship(peer string, delta float64) (old, updated float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.relationships[peer]
	updated = clamp(old+delta, -1, 1)
	s.relationships[peer] = updated
	return old, updated
}

// SetPerceivedRole records the inferred role of another agent.
func (s *State) SetPerceivedRole(peer, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perceivedRoles[peer] = role
}

// PublishModuleOutput stores a module's latest output, overwriting the
// previous cycle's.
func (s *State) PublishModuleOutput(module string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moduleOutputs[module] = types.ModuleOutput{
		Module:    module,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// ModuleOutput returns a module's latest output, if any.
func (s *State) ModuleOutput(module string) (types.ModuleOutput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.moduleOutputs[module]
	return out, ok
}

// PublishDecision commits the bottleneck decision, stamping timestamp and
// agent ID.
func (s *State) PublishDecision(d types.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.Timestamp = time.Now()
	d.AgentID = s.identity.ID
	s.decision = &d
}

// Decision returns a copy of the latest decision, or nil before the first
// controller cycle completes.
func (s *State) Decision() *types.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.decision == nil {
		return nil
	}
	d := *s.decision
	return &d
}

// SetLastAction records the most recently executed action and its reported
// outcome.
func (s *State) SetLastAction(r types.ActionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = &r
}

// SetSuccessRate stores the rolling action success rate, clamped to [0, 1].
func (s *State) SetSuccessRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successRate = clamp(rate, 0, 1)
}

// UpdateSuccessRate folds one action outcome into the rolling success rate
// with an exponential moving average, atomically. Returns the new rate.
func (s *State) UpdateSuccessRate(success bool, alpha float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	s.successRate = clamp(s.successRate*(1-alpha)+outcome*alpha, 0, 1)
	return s.successRate
}

// SuccessRate returns the rolling action success rate.
func (s *State) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successRate
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Snapshot is an immutable copy of the full agent state, safe for
// concurrent reading. The bottleneck controller and the modules read from
// snapshots so the lock is released before any slow work starts.
type Snapshot struct {
	Identity       Identity
	Location       types.Location
	Health         float64
	Hunger         float64
	Inventory      []types.ItemStack
	Entities       []types.Entity
	NearbyAgents   []types.Entity
	HasObservation bool

	Working   []types.MemoryItem
	ShortTerm []types.MemoryItem
	LongTerm  []types.MemoryItem

	Goals          []types.Goal
	Relationships  map[string]float64
	PerceivedRoles map[string]string

	ModuleOutputs map[string]types.ModuleOutput

	Decision    *types.Decision
	LastAction  *types.ActionResult
	SuccessRate float64
}

// Snapshot returns a deep copy of the state under one lock acquisition.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Identity:       s.identity,
		Location:       s.location,
		Health:         s.health,
		Hunger:         s.hunger,
		Inventory:      append([]types.ItemStack(nil), s.inventory...),
		Entities:       append([]types.Entity(nil), s.entities...),
		NearbyAgents:   append([]types.Entity(nil), s.nearbyAgents...),
		HasObservation: s.hasObservation,
		Working:        append([]types.MemoryItem(nil), s.working...),
		ShortTerm:      append([]types.MemoryItem(nil), s.shortTerm...),
		LongTerm:       append([]types.MemoryItem(nil), s.longTerm...),
		Goals:          append([]types.Goal(nil), s.goals...),
		Relationships:  make(map[string]float64, len(s.relationships)),
		PerceivedRoles: make(map[string]string, len(s.perceivedRoles)),
		ModuleOutputs:  make(map[string]types.ModuleOutput, len(s.moduleOutputs)),
		SuccessRate:    s.successRate,
	}
	snap.Identity.Traits = append([]string(nil), s.identity.Traits...)
	for k, v := range s.relationships {
		snap.Relationships[k] = v
	}
	for k, v := range s.perceivedRoles {
		snap.PerceivedRoles[k] = v
	}
	for k, v := range s.moduleOutputs {
		snap.ModuleOutputs[k] = v
	}
	if s.decision != nil {
		d := *s.decision
		snap.Decision = &d
	}
	if s.lastAction != nil {
		a := *s.lastAction
		snap.LastAction = &a
	}
	return snap
}
