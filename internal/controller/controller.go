// Package controller implements the decision bottleneck: it filters the
// shared state and the five module outputs down to a bounded context,
// reasons over it with the oracle, and publishes exactly one action per
// cycle. The bottleneck is what keeps a concurrently-updated agent
// coherent; modules may disagree, the published decision never does.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/modules"
	"github.com/tt/piano/internal/oracle"
	"github.com/tt/piano/internal/profiling"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// Bottleneck limits: how much state fits through per cycle.
const (
	maxContextMemories = 3
	maxContextPeers    = 5
	maxContextGoals    = 3

	defaultInterval      = 5 * time.Second
	defaultOracleTimeout = 30 * time.Second
)

// PeerLister exposes other agents' latest public state for coordination.
// Implementations must not hold any agent lock while another agent's
// controller is calling in.
type PeerLister interface {
	Peers(excludeID string) []types.PeerSummary
}

// Context is the bounded view that passes through the bottleneck: the
// only information the oracle sees when deciding.
type Context struct {
	Identity       state.Identity
	Health         float64
	Hunger         float64
	Location       types.Location
	InventoryCount int
	RecentMemory   []string
	NearbyAgents   []types.Entity
	Goals          []types.Goal
	ModuleInsights map[string]string
	LastAction     string
}

// Controller runs the decision loop for one agent.
type Controller struct {
	state    *state.State
	oracle   oracle.Oracle
	journal  *journal.Journal // nil disables journaling
	peers    PeerLister       // nil means a single-agent world
	interval time.Duration
	timeout  time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a controller. Zero interval and timeout select the
// defaults (5s cycle, 30s oracle budget).
func New(st *state.State, o oracle.Oracle, j *journal.Journal, peers PeerLister, interval, timeout time.Duration) *Controller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultOracleTimeout
	}
	return &Controller{
		state:    st,
		oracle:   o,
		journal:  j,
		peers:    peers,
		interval: interval,
		timeout:  timeout,
		stopChan: make(chan struct{}),
	}
}

// Start launches the decision loop.
func (c *Controller) Start() {
	c.wg.Add(1)
	go c.loop()
	logging.Debug("controller", "started (interval %s)", c.interval)
}

// Stop signals the loop and waits for it to exit.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()
}

func (c *Controller) loop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
		}

		d := c.Decide()
		logging.Info("controller", "[%s] %s: %s",
			c.state.Identity().Name, d.Action, logging.Truncate(d.Reasoning, 120))
	}
}

// Decide runs one bottleneck cycle: gather, reason, parse, publish.
// Always publishes a decision; oracle failure degrades to the fallback
// action rather than skipping the cycle.
func (c *Controller) Decide() types.Decision {
	defer profiling.Get().Start(c.state.Identity().Name, "decision")()

	bc := c.gather()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	reply, err := c.oracle.Generate(ctx, c.prompt(bc))
	var decision types.Decision
	if err != nil {
		logging.Warn("controller", "oracle failed: %v", err)
		decision = types.Decision{
			Action:    FallbackAction,
			Reasoning: "Reasoning unavailable, holding position",
		}
	} else {
		decision = c.parse(reply)
	}

	c.state.PublishDecision(decision)
	published := c.state.Decision()

	if c.journal != nil {
		if err := c.journal.LogDecision(published.AgentID, published.Action, published.Reasoning); err != nil {
			logging.Warn("controller", "journal write failed: %v", err)
		}
	}
	return *published
}

// gather applies the bottleneck filter: a fixed-size selection of the
// freshest, most relevant state. Everything else is dropped on purpose.
func (c *Controller) gather() Context {
	snap := c.state.Snapshot()

	bc := Context{
		Identity:       snap.Identity,
		Health:         snap.Health,
		Hunger:         snap.Hunger,
		Location:       snap.Location,
		InventoryCount: len(snap.Inventory),
		ModuleInsights: make(map[string]string),
		LastAction:     "none",
	}

	working := snap.Working
	if len(working) > maxContextMemories {
		working = working[len(working)-maxContextMemories:]
	}
	for _, m := range working {
		bc.RecentMemory = append(bc.RecentMemory, m.Event)
	}

	peers := snap.NearbyAgents
	if len(peers) > maxContextPeers {
		peers = peers[:maxContextPeers]
	}
	bc.NearbyAgents = peers

	goals := snap.Goals
	if len(goals) > maxContextGoals {
		goals = goals[:maxContextGoals]
	}
	bc.Goals = goals

	if snap.LastAction != nil {
		bc.LastAction = snap.LastAction.Action
	}

	for _, name := range []string{"perception", "social_awareness", "goal_generation", "action_awareness", "memory_consolidation"} {
		if out, ok := snap.ModuleOutputs[name]; ok {
			bc.ModuleInsights[name] = keyInsight(out)
		}
	}
	return bc
}

// keyInsight reduces one module's full output to a single line. Each
// module gets exactly one sentence through the bottleneck.
func keyInsight(out types.ModuleOutput) string {
	switch payload := out.Payload.(type) {
	case modules.PerceptionOutput:
		return payload.SalientFeature
	case modules.SocialOutput:
		return payload.Summary
	case modules.GoalsOutput:
		if len(payload.ProposedGoals) > 0 {
			return payload.ProposedGoals[0]
		}
		return "No active goals"
	case modules.ActionOutput:
		return fmt.Sprintf("Last action: %s", payload.Status)
	case modules.ConsolidationOutput:
		return payload.KeyMemory
	default:
		return "No insight available"
	}
}

// prompt renders the bounded context as the decision prompt, with the
// full action vocabulary enumerated and cycle hints that keep the agent
// making visible progress.
func (c *Controller) prompt(bc Context) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s building in Minecraft Creative mode.\n", bc.Identity.Name)
	fmt.Fprintf(&b, "Location: (%.0f, %.0f, %.0f). Health: %.1f/20, Hunger: %.1f/20, %d items held.\n",
		bc.Location.X, bc.Location.Y, bc.Location.Z, bc.Health, bc.Hunger, bc.InventoryCount)
	fmt.Fprintf(&b, "Your last action was: %s\n", bc.LastAction)
	fmt.Fprintf(&b, "%s\n", c.formatPeers(bc))

	if len(bc.Goals) > 0 {
		b.WriteString("\nGoals:\n")
		for _, g := range bc.Goals {
			fmt.Fprintf(&b, "- %s\n", g.Description)
		}
	}
	if len(bc.RecentMemory) > 0 {
		b.WriteString("\nRecent memory:\n")
		for _, m := range bc.RecentMemory {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if len(bc.ModuleInsights) > 0 {
		b.WriteString("\nModule insights:\n")
		for _, name := range []string{"perception", "social_awareness", "goal_generation", "action_awareness", "memory_consolidation"} {
			if insight, ok := bc.ModuleInsights[name]; ok {
				fmt.Fprintf(&b, "- %s: %s\n", name, insight)
			}
		}
	}

	b.WriteString(`
Actions: move_forward, turn_left, turn_right, place_block, mine_block, jump_forward, select_slot_3 (cobblestone), select_slot_4 (wood planks), select_slot_5 (brick), select_slot_6 (glass), select_slot_7 (torch), look_around, wait

RULES:
- You are ALREADY at the build site. Do NOT explore or look for a location.
- Follow this cycle: select_slot -> place_block -> turn or move -> place_block -> repeat
- If your last action was select_slot_*, your next MUST be place_block
- If your last action was place_block, move_forward or turn to reposition, then place_block again
- NEVER pick move_forward more than twice in a row

ACTION: <name>
REASONING: <short>
`)
	return b.String()
}

func (c *Controller) formatPeers(bc Context) string {
	if c.peers == nil {
		return "Other agents: unknown"
	}
	others := c.peers.Peers(bc.Identity.ID)
	if len(others) == 0 {
		return "Other agents: none nearby"
	}
	parts := make([]string, 0, len(others))
	for _, p := range others {
		parts = append(parts, fmt.Sprintf("%s at (%.0f,%.0f) doing %s", p.Name, p.Location.X, p.Location.Z, p.LastAction))
	}
	return "Other agents: " + strings.Join(parts, "; ")
}

// parse extracts ACTION and REASONING lines from the oracle reply. An
// action outside the menu degrades to DefaultAction so the agent keeps
// moving rather than stalling on a malformed reply.
func (c *Controller) parse(reply string) types.Decision {
	var rawAction, reasoning string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ACTION:"):
			rawAction = strings.TrimSpace(line[len("ACTION:"):])
		case strings.HasPrefix(upper, "REASONING:"):
			reasoning = strings.TrimSpace(line[len("REASONING:"):])
		}
	}

	action := strings.Trim(strings.ToLower(rawAction), " `\"'")
	if !ValidAction(action) {
		logging.Warn("controller", "unknown action %q, defaulting to %s", rawAction, DefaultAction)
		action = DefaultAction
	}
	return types.Decision{Action: action, Reasoning: reasoning}
}
