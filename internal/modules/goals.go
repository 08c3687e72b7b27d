package modules

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/oracle"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// GoalsOutput is what goal generation publishes each cycle.
type GoalsOutput struct {
	ProposedGoals []string `json:"proposed_goals"`
	GoalCount     int      `json:"current_goal_count"`
	GoalAdded     bool     `json:"goal_added"`
}

const goalHistoryCap = 100

// Goals asks the reasoning oracle for one new goal per cycle, falls back
// to a fixed need ladder when the oracle is unavailable, and keeps the
// goal list prioritized and trimmed.
type Goals struct {
	cadence time.Duration
	oracle  oracle.Oracle
	timeout time.Duration

	history []types.Goal // for role-pattern analysis, capped
}

// NewGoals creates the goal-generation module. Zero cadence means the
// default 7s; zero timeout means 30s per oracle call.
func NewGoals(o oracle.Oracle, cadence, timeout time.Duration) *Goals {
	if cadence <= 0 {
		cadence = 7 * time.Second
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Goals{cadence: cadence, oracle: o, timeout: timeout}
}

func (g *Goals) Name() string           { return "goal_generation" }
func (g *Goals) Cadence() time.Duration { return g.cadence }

// Process generates one new goal and folds it into the goal list.
func (g *Goals) Process(st *state.State) (any, error) {
	snap := st.Snapshot()

	description, source := g.generateGoal(snap)
	if description == "" {
		return GoalsOutput{ProposedGoals: []string{}, GoalCount: len(snap.Goals)}, nil
	}

	goal := types.Goal{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    goalPriority(description, snap),
		Source:      source,
		CreatedAt:   time.Now(),
	}
	st.InsertGoal(goal)
	g.remember(goal)

	return GoalsOutput{
		ProposedGoals: []string{description},
		GoalCount:     len(st.Goals()),
		GoalAdded:     true,
	}, nil
}

// generateGoal asks the oracle, falling back to the need ladder on any
// failure. The oracle call is bounded; a slow provider costs one cycle,
// not the module.
func (g *Goals) generateGoal(snap state.Snapshot) (string, types.GoalSource) {
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	reply, err := g.oracle.Generate(ctx, goalPrompt(snap))
	if err != nil {
		logging.Debug(g.Name(), "oracle failed, using fallback: %v", err)
		return fallbackGoal(snap), types.GoalSourceFallback
	}

	goal := parseGoal(reply)
	if goal == "" {
		return fallbackGoal(snap), types.GoalSourceFallback
	}
	return goal, types.GoalSourceLLM
}

func goalPrompt(snap state.Snapshot) string {
	var memory []string
	working := snap.Working
	if len(working) > 3 {
		working = working[len(working)-3:]
	}
	for _, m := range working {
		memory = append(memory, m.Event)
	}
	recentMemory := "No recent memories"
	if len(memory) > 0 {
		recentMemory = strings.Join(memory, ", ")
	}

	var goals []string
	for _, goal := range snap.Goals {
		goals = append(goals, "- "+goal.Description)
	}
	currentGoals := "No active goals"
	if len(goals) > 0 {
		currentGoals = strings.Join(goals, "\n")
	}

	return fmt.Sprintf(`You are %s, an agent in a Minecraft world.

Your traits: %s

## Current State
Health: %.1f/20
Hunger: %.1f/20
Inventory: %d items
Location: (%.0f, %.0f, %.0f)

## Nearby
%d agents nearby
Recent memory: %s

## Current Goals
%s

## Task
Generate ONE new goal for yourself. The goal should be:
1. Specific and actionable
2. Aligned with your survival needs and personality
3. Compatible with social context
4. Different from current goals

Respond with only the goal description (one sentence, no explanation).
Example: "Find wood to build shelter"
Example: "Trade resources with nearby agents"
Example: "Explore the area to find food"

Your goal:`,
		snap.Identity.Name,
		strings.Join(snap.Identity.Traits, ", "),
		snap.Health, snap.Hunger,
		len(snap.Inventory),
		snap.Location.X, snap.Location.Y, snap.Location.Z,
		len(snap.NearbyAgents),
		recentMemory,
		currentGoals,
	)
}

// parseGoal cleans an oracle reply down to a bare goal sentence.
func parseGoal(reply string) string {
	goal := strings.Trim(strings.TrimSpace(reply), `"'`)

	prefixes := []string{"my goal:", "new goal:", "goal:", "i want to", "i will"}
	lowered := strings.ToLower(goal)
	for _, prefix := range prefixes {
		if strings.HasPrefix(lowered, prefix) {
			goal = strings.Trim(strings.TrimSpace(goal[len(prefix):]), `"'`)
			lowered = strings.ToLower(goal)
		}
	}

	if goal == "" {
		return ""
	}
	return strings.ToUpper(goal[:1]) + goal[1:]
}

// fallbackGoal is the fixed need ladder used when the oracle fails:
// survival first, then resources, then exploration.
func fallbackGoal(snap state.Snapshot) string {
	if snap.Health < lowHealthThreshold {
		return "Find shelter to avoid danger"
	}
	if snap.Hunger < lowHungerThreshold {
		return "Find food to restore hunger"
	}
	if len(snap.Inventory) < 3 {
		return "Gather basic resources (wood, stone)"
	}
	return "Explore the surrounding area"
}

// goalPriority scores a goal by keyword class, boosted when the matching
// need is actually urgent.
func goalPriority(goal string, snap state.Snapshot) float64 {
	lower := strings.ToLower(goal)

	if snap.Health < lowHealthThreshold && containsAny(lower, []string{"health", "heal", "shelter", "hide"}) {
		return 1.0
	}
	if snap.Hunger < lowHungerThreshold && containsAny(lower, []string{"food", "eat", "hunt"}) {
		return 0.9
	}
	if containsAny(lower, []string{"gather", "collect", "mine", "wood", "stone"}) {
		return 0.7
	}
	if containsAny(lower, []string{"trade", "help", "cooperate", "talk"}) {
		return 0.6
	}
	if containsAny(lower, []string{"explore", "find", "search"}) {
		return 0.5
	}
	return 0.5
}

func (g *Goals) remember(goal types.Goal) {
	g.history = append(g.history, goal)
	if len(g.history) > goalHistoryCap {
		g.history = g.history[len(g.history)-goalHistoryCap:]
	}
}

// Patterns buckets the goal history into behavioral categories. Used to
// infer what role an agent has drifted into.
func (g *Goals) Patterns() map[string]int {
	patterns := map[string]int{
		"gathering": 0,
		"building":  0,
		"exploring": 0,
		"social":    0,
		"survival":  0,
	}
	for _, goal := range g.history {
		lower := strings.ToLower(goal.Description)
		if containsAny(lower, []string{"gather", "collect", "mine"}) {
			patterns["gathering"]++
		}
		if containsAny(lower, []string{"build", "craft", "create"}) {
			patterns["building"]++
		}
		if containsAny(lower, []string{"explore", "find", "search"}) {
			patterns["exploring"]++
		}
		if containsAny(lower, []string{"trade", "help", "cooperate"}) {
			patterns["social"]++
		}
		if containsAny(lower, []string{"food", "heal", "shelter"}) {
			patterns["survival"]++
		}
	}
	return patterns
}
