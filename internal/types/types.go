package types

import "time"

// MemoryTier identifies one of the three retention levels.
type MemoryTier string

const (
	TierWorking   MemoryTier = "working"    // last few seconds, cap 5
	TierShortTerm MemoryTier = "short_term" // last few minutes, cap 50
	TierLongTerm  MemoryTier = "long_term"  // persistent, uncapped
)

// Memory tier caps and decay windows.
const (
	WorkingCap     = 5
	ShortTermCap   = 50
	WorkingDecay   = 30 * time.Second
	ShortTermDecay = 10 * time.Minute
	GoalCap        = 3
	InteractionCap = 20
)

// Memory event types. Consolidation scores importance from these.
const (
	EventObservation   = "observation"
	EventActionResult  = "action_result"
	EventActionFailure = "action_failure"
	EventDamageTaken   = "damage_taken"
	EventNearDeath     = "near_death"
	EventItemAcquired  = "item_acquired"
	EventGoalCompleted = "goal_completed"
	EventNewAgentMet   = "new_agent_met"
	EventMovement      = "movement"
	EventRoutine       = "routine"
)

// MemoryItem is a single entry in one of the memory tiers. Importance is
// assigned at consolidation time, not at creation.
type MemoryItem struct {
	Event      string    `json:"event"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	Importance float64   `json:"importance,omitempty"`
}

// GoalSource tags where a goal came from.
type GoalSource string

const (
	GoalSourceLLM      GoalSource = "llm"      // proposed by the reasoning oracle
	GoalSourceFallback GoalSource = "fallback" // fixed priority ladder
	GoalSourceUser     GoalSource = "user"     // external operator override
)

// Goal is a prioritized intention. The goal list is kept sorted by priority
// descending and trimmed to GoalCap.
type Goal struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Priority    float64    `json:"priority"` // 0.0-1.0
	Source      GoalSource `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Location is a position in the world.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ItemStack is one inventory slot.
type ItemStack struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

// Entity is something observed in the world, with its distance from the agent.
type Entity struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// Observation is the raw record pushed by the environment bridge. Any field
// may be missing; the state store substitutes defaults.
type Observation struct {
	Location  *Location   `json:"location,omitempty"`
	Health    *float64    `json:"health,omitempty"`
	Hunger    *float64    `json:"hunger,omitempty"`
	Inventory []ItemStack `json:"inventory,omitempty"`
	Entities  []Entity    `json:"entities,omitempty"`
}

// FullVital is the default health/hunger value when the bridge omits them.
const FullVital = 20.0

// ModuleOutput is the latest output of one processing module. Overwritten
// each cycle; no history is kept.
type ModuleOutput struct {
	Module    string    `json:"module"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Decision is the single externally-consumed artifact: the bottleneck
// controller's committed action for this cycle.
type Decision struct {
	Action    string    `json:"action"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id,omitempty"`
}

// ActionResult records the last executed action as reported by the driver.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
}

// ExpectedChanges describes the deltas an action is expected to produce.
// Zero-value fields mean "no expectation for that category".
type ExpectedChanges struct {
	InventoryChange map[string]int `json:"inventory_change,omitempty"` // item -> qty delta
	LocationChange  *Location      `json:"location_change,omitempty"`  // expected axis deltas
	HealthChange    float64        `json:"health_change,omitempty"`    // expected direction
}

// IsZero reports whether no expectation is stated in any category.
func (c ExpectedChanges) IsZero() bool {
	return len(c.InventoryChange) == 0 && c.LocationChange == nil && c.HealthChange == 0
}

// Expectation is set immediately before an action executes and checked by the
// action-awareness verifier against the next observed state.
type Expectation struct {
	Action   string          `json:"action"`
	Expected ExpectedChanges `json:"expected_changes"`
	SetAt    time.Time       `json:"set_at"`
}

// PeerSummary is a read-only view of another agent used for coordination
// text in prompts. Built from that agent's own snapshot, never by holding
// its lock while holding ours.
type PeerSummary struct {
	Name       string   `json:"name"`
	Location   Location `json:"location"`
	LastAction string   `json:"last_action"`
}
