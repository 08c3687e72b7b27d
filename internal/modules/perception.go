package modules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// Entity categories assigned by name keywords.
const (
	CategoryAgent      = "agent"
	CategoryHostileMob = "hostile_mob"
	CategoryPassiveMob = "passive_mob"
	CategoryItem       = "item"
	CategoryUnknown    = "unknown"
)

// Distance thresholds for threat and opportunity detection, in blocks.
const (
	hostileThreatRange = 10.0
	itemPickupRange    = 5.0
	foodSourceRange    = 8.0
	socialRange        = 15.0
	lowHealthThreshold = 10.0
	lowHungerThreshold = 6.0
)

var hostileMobNames = []string{"zombie", "skeleton", "creeper", "spider"}
var passiveMobNames = []string{"cow", "pig", "sheep", "chicken"}

// CategorizedEntity is an observed entity with its assigned category.
type CategorizedEntity struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Category string  `json:"category"`
}

// Threat is something the agent should move away from or fix.
type Threat struct {
	Type     string  `json:"type"`
	Name     string  `json:"name,omitempty"`
	Distance float64 `json:"distance,omitempty"`
	Value    float64 `json:"value,omitempty"`
}

// Opportunity is something worth approaching.
type Opportunity struct {
	Type     string  `json:"type"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// PerceptionOutput is what perception publishes each cycle.
type PerceptionOutput struct {
	SalientFeature     string              `json:"salient_feature"`
	Entities           []CategorizedEntity `json:"entities"`
	Threats            []Threat            `json:"threats"`
	Opportunities      []Opportunity       `json:"opportunities"`
	EnvironmentSummary string              `json:"environment_summary"`
}

// Perception compares each world snapshot against the previous one and
// distills the single most salient change, plus categorized entities and
// derived threat/opportunity lists for the controller to filter.
type Perception struct {
	cadence time.Duration

	// Previous cycle's view; perception is the only writer.
	prevHealth     float64
	prevAgentCount int
	prevInvCount   int
	hasPrev        bool
}

// NewPerception creates the perception module. Zero cadence means the
// default 500ms.
func NewPerception(cadence time.Duration) *Perception {
	if cadence <= 0 {
		cadence = 500 * time.Millisecond
	}
	return &Perception{cadence: cadence}
}

func (p *Perception) Name() string           { return "perception" }
func (p *Perception) Cadence() time.Duration { return p.cadence }

// Process derives the perception output from the current snapshot.
func (p *Perception) Process(st *state.State) (any, error) {
	snap := st.Snapshot()

	if !snap.HasObservation {
		return PerceptionOutput{
			SalientFeature: "No observation available",
			Entities:       []CategorizedEntity{},
			Threats:        []Threat{},
			Opportunities:  []Opportunity{},
		}, nil
	}

	salient := p.detectSalientChange(snap)
	entities := categorizeEntities(snap.Entities)
	threats := detectThreats(entities, snap)
	opportunities := detectOpportunities(entities)

	p.prevHealth = snap.Health
	p.prevAgentCount = len(snap.NearbyAgents)
	p.prevInvCount = len(snap.Inventory)
	p.hasPrev = true

	return PerceptionOutput{
		SalientFeature:     salient,
		Entities:           entities,
		Threats:            threats,
		Opportunities:      opportunities,
		EnvironmentSummary: summarizeEnvironment(entities),
	}, nil
}

// detectSalientChange picks the single most salient difference from the
// previous cycle, in fixed priority order: health drop > health rise > new
// agent > agent departed > item gained > item lost > stable.
func (p *Perception) detectSalientChange(snap state.Snapshot) string {
	if !p.hasPrev {
		return "Environment initialized"
	}

	if snap.Health < p.prevHealth {
		return fmt.Sprintf("Taking damage! Health: %.1f", snap.Health)
	}
	if snap.Health > p.prevHealth {
		return fmt.Sprintf("Healing! Health: %.1f", snap.Health)
	}

	agents := len(snap.NearbyAgents)
	if agents > p.prevAgentCount {
		return "New agent nearby"
	}
	if agents < p.prevAgentCount {
		return "Agent left area"
	}

	inv := len(snap.Inventory)
	if inv > p.prevInvCount {
		return "Acquired new item"
	}
	if inv < p.prevInvCount {
		return "Used/dropped item"
	}

	return "Environment stable"
}

func categorizeEntities(entities []types.Entity) []CategorizedEntity {
	out := make([]CategorizedEntity, 0, len(entities))
	for _, e := range entities {
		out = append(out, CategorizedEntity{
			Name:     e.Name,
			Distance: e.Distance,
			Category: categorizeEntity(e.Name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func categorizeEntity(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "agent"):
		return CategoryAgent
	case containsAny(lower, hostileMobNames):
		return CategoryHostileMob
	case containsAny(lower, passiveMobNames):
		return CategoryPassiveMob
	case strings.Contains(lower, "item"):
		return CategoryItem
	default:
		return CategoryUnknown
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// detectThreats lists hostile mobs in range plus low-vital conditions. Low
// health and low hunger are threats regardless of nearby entities.
func detectThreats(entities []CategorizedEntity, snap state.Snapshot) []Threat {
	threats := []Threat{}
	for _, e := range entities {
		if e.Category == CategoryHostileMob && e.Distance < hostileThreatRange {
			threats = append(threats, Threat{Type: CategoryHostileMob, Name: e.Name, Distance: e.Distance})
		}
	}
	if snap.Health < lowHealthThreshold {
		threats = append(threats, Threat{Type: "low_health", Value: snap.Health})
	}
	if snap.Hunger < lowHungerThreshold {
		threats = append(threats, Threat{Type: "low_hunger", Value: snap.Hunger})
	}
	return threats
}

func detectOpportunities(entities []CategorizedEntity) []Opportunity {
	opportunities := []Opportunity{}
	for _, e := range entities {
		switch {
		case e.Category == CategoryItem && e.Distance < itemPickupRange:
			opportunities = append(opportunities, Opportunity{Type: "item_pickup", Name: e.Name, Distance: e.Distance})
		case e.Category == CategoryPassiveMob && e.Distance < foodSourceRange:
			opportunities = append(opportunities, Opportunity{Type: "food_source", Name: e.Name, Distance: e.Distance})
		case e.Category == CategoryAgent && e.Distance < socialRange:
			opportunities = append(opportunities, Opportunity{Type: "social_interaction", Name: e.Name, Distance: e.Distance})
		}
	}
	return opportunities
}

func summarizeEnvironment(entities []CategorizedEntity) string {
	agents, mobs := 0, 0
	for _, e := range entities {
		switch e.Category {
		case CategoryAgent:
			agents++
		case CategoryHostileMob, CategoryPassiveMob:
			mobs++
		}
	}
	return fmt.Sprintf("%d agents, %d mobs nearby", agents, mobs)
}
