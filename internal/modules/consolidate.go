package modules

import (
	"strings"
	"time"

	"github.com/tsawler/prose/v3"

	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/ltm"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// Promotion thresholds and decay windows for the memory pipeline.
const (
	workingPromoteMin   = 0.3
	shortTermPromoteMin = 0.6
	workingTTL          = 30 * time.Second
	shortTermTTL        = 10 * time.Minute
)

// ConsolidationOutput reports one consolidation pass.
type ConsolidationOutput struct {
	PromotedToShortTerm int         `json:"promoted_to_short_term"`
	PromotedToLongTerm  int         `json:"promoted_to_long_term"`
	WorkingDecayed      int         `json:"working_decayed"`
	ShortTermDecayed    int         `json:"short_term_decayed"`
	KeyMemory           string      `json:"key_memory"`
	Stats               MemoryStats `json:"stats"`
}

// MemoryStats counts items per tier after the pass.
type MemoryStats struct {
	Working   int `json:"working"`
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
}

// Consolidation runs the multi-timescale memory pipeline: scores working
// memories against current goals, promotes the important ones upward,
// persists long-term memories, and decays the rest.
type Consolidation struct {
	cadence time.Duration
	store   *ltm.Store // nil disables persistence
}

// NewConsolidation creates the consolidation module. Zero cadence means
// the default 10s. store may be nil when long-term persistence is off.
func NewConsolidation(store *ltm.Store, cadence time.Duration) *Consolidation {
	if cadence <= 0 {
		cadence = 10 * time.Second
	}
	return &Consolidation{cadence: cadence, store: store}
}

func (c *Consolidation) Name() string           { return "memory_consolidation" }
func (c *Consolidation) Cadence() time.Duration { return c.cadence }

// Process runs one consolidation pass: promote, persist, decay, report.
func (c *Consolidation) Process(st *state.State) (any, error) {
	goals := st.Goals()
	scorer := func(m types.MemoryItem) float64 {
		return scoreImportance(m, goals)
	}

	promoted := st.PromoteWorking(workingPromoteMin, scorer)
	longTerm := st.PromoteShortTerm(shortTermPromoteMin)

	if c.store != nil {
		agentID := st.Identity().ID
		for _, m := range longTerm {
			if _, err := c.store.Insert(agentID, m); err != nil {
				logging.Warn(c.Name(), "persist long-term memory: %v", err)
			}
		}
	}

	now := time.Now()
	workingDropped, shortTermDropped := st.DecayMemories(now.Add(-workingTTL), now.Add(-shortTermTTL))

	snap := st.Snapshot()
	return ConsolidationOutput{
		PromotedToShortTerm: len(promoted),
		PromotedToLongTerm:  len(longTerm),
		WorkingDecayed:      workingDropped,
		ShortTermDecayed:    shortTermDropped,
		KeyMemory:           keyMemory(snap),
		Stats: MemoryStats{
			Working:   len(snap.Working),
			ShortTerm: len(snap.ShortTerm),
			LongTerm:  len(snap.LongTerm),
		},
	}, nil
}

// Event classes for base importance. Survival events nearly always
// promote, routine events need goal relevance to survive.
var (
	survivalEvents = map[string]bool{
		types.EventDamageTaken:   true,
		types.EventNearDeath:     true,
		types.EventActionFailure: true,
	}
	achievementEvents = map[string]bool{
		types.EventItemAcquired:  true,
		types.EventGoalCompleted: true,
		types.EventNewAgentMet:   true,
	}
)

// scoreImportance assigns a base score by event class and boosts it by
// keyword overlap with current goal descriptions, capped at 1.0.
func scoreImportance(m types.MemoryItem, goals []types.Goal) float64 {
	score := 0.2
	switch {
	case survivalEvents[m.Type]:
		score = 0.8
	case achievementEvents[m.Type]:
		score = 0.5
	}

	if len(goals) > 0 {
		words := keywords(m.Event)
		for _, goal := range goals {
			overlap := 0
			goalWords := keywords(goal.Description)
			for w := range words {
				if goalWords[w] {
					overlap++
				}
			}
			if overlap > 2 {
				overlap = 2
			}
			score += 0.2 * float64(overlap)
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// keywords tokenizes text into a lowercase word set. Tokenization goes
// through the NLP pipeline so punctuation splits cleanly; on failure it
// degrades to whitespace splitting.
func keywords(text string) map[string]bool {
	words := make(map[string]bool)
	doc, err := prose.NewDocument(text)
	if err != nil {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			words[strings.Trim(w, ".,!?'\"")] = true
		}
		return words
	}
	for _, tok := range doc.Tokens() {
		w := strings.ToLower(tok.Text)
		if len(w) < 3 {
			continue
		}
		words[w] = true
	}
	return words
}

// keyMemory picks the single most decision-relevant memory: the most
// important short-term item, else the freshest working item.
func keyMemory(snap state.Snapshot) string {
	if len(snap.ShortTerm) > 0 {
		best := snap.ShortTerm[0]
		for _, m := range snap.ShortTerm[1:] {
			if m.Importance > best.Importance {
				best = m
			}
		}
		return best.Event
	}
	if len(snap.Working) > 0 {
		return snap.Working[len(snap.Working)-1].Event
	}
	return "No recent memories"
}
