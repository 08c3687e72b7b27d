package modules

import (
	"fmt"
	"time"

	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// Interaction bands by distance and their relationship increments.
const (
	bandClose   = "close"   // can collaborate
	bandNearby  = "nearby"  // aware of each other
	bandDistant = "distant" // visible but far
	bandNone    = "none"

	closeRange   = 3.0
	nearbyRange  = 10.0
	distantRange = 20.0

	closeDelta   = 0.02
	nearbyDelta  = 0.01
	distantDelta = 0.005
	decayDelta   = -0.001 // slow decay when a known peer is out of range

	friendlyThreshold = 0.5
)

// Interaction is one observed encounter with a peer.
type Interaction struct {
	Agent     string    `json:"agent"`
	Band      string    `json:"band"`
	Distance  float64   `json:"distance"`
	Timestamp time.Time `json:"timestamp"`
}

// RelationshipUpdate records one relationship score change.
type RelationshipUpdate struct {
	Agent    string  `json:"agent"`
	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
	Change   float64 `json:"change"`
}

// SocialOutput is what social awareness publishes each cycle.
type SocialOutput struct {
	Summary             string               `json:"social_summary"`
	Interactions        []Interaction        `json:"interactions"`
	RelationshipUpdates []RelationshipUpdate `json:"relationship_updates"`
	NearbyAgentCount    int                  `json:"nearby_agent_count"`
}

// Social tracks other agents: interaction bands by distance, slowly
// evolving relationship scores, and a per-peer interaction history.
type Social struct {
	cadence time.Duration

	// Per-peer history, capped. Only this module touches it.
	history map[string][]Interaction
}

// NewSocial creates the social-awareness module. Zero cadence means the
// default 2s.
func NewSocial(cadence time.Duration) *Social {
	if cadence <= 0 {
		cadence = 2 * time.Second
	}
	return &Social{
		cadence: cadence,
		history: make(map[string][]Interaction),
	}
}

func (s *Social) Name() string           { return "social_awareness" }
func (s *Social) Cadence() time.Duration { return s.cadence }

// Process classifies each nearby agent by distance band, nudges the
// relationship score for the band, and emits a one-line social summary.
func (s *Social) Process(st *state.State) (any, error) {
	snap := st.Snapshot()

	if len(snap.NearbyAgents) == 0 {
		return SocialOutput{
			Summary:             "No agents nearby",
			Interactions:        []Interaction{},
			RelationshipUpdates: []RelationshipUpdate{},
		}, nil
	}

	now := time.Now()
	interactions := []Interaction{}
	updates := []RelationshipUpdate{}

	for _, peer := range snap.NearbyAgents {
		band := classifyBand(peer.Distance)

		if band != bandNone {
			interaction := Interaction{Agent: peer.Name, Band: band, Distance: peer.Distance, Timestamp: now}
			interactions = append(interactions, interaction)
			s.recordInteraction(peer.Name, interaction)
		}

		delta := bandDelta(band)
		old, updated := st.UpdateRelationship(peer.Name, delta)
		updates = append(updates, RelationshipUpdate{
			Agent:    peer.Name,
			OldValue: old,
			NewValue: updated,
			Change:   delta,
		})

		// Role inference over observed activity would go here; without
		// activity tracking every peer stays unknown.
		st.SetPerceivedRole(peer.Name, "unknown")
	}

	return SocialOutput{
		Summary:             socialSummary(snap),
		Interactions:        interactions,
		RelationshipUpdates: updates,
		NearbyAgentCount:    len(snap.NearbyAgents),
	}, nil
}

// History returns the recorded interactions with one peer.
func (s *Social) History(peer string) []Interaction {
	return append([]Interaction(nil), s.history[peer]...)
}

func (s *Social) recordInteraction(peer string, interaction Interaction) {
	h := append(s.history[peer], interaction)
	if len(h) > types.InteractionCap {
		h = h[len(h)-types.InteractionCap:]
	}
	s.history[peer] = h
}

func classifyBand(distance float64) string {
	switch {
	case distance < closeRange:
		return bandClose
	case distance < nearbyRange:
		return bandNearby
	case distance < distantRange:
		return bandDistant
	default:
		return bandNone
	}
}

func bandDelta(band string) float64 {
	switch band {
	case bandClose:
		return closeDelta
	case bandNearby:
		return nearbyDelta
	case bandDistant:
		return distantDelta
	default:
		return decayDelta
	}
}

func socialSummary(snap state.Snapshot) string {
	closest := snap.NearbyAgents[0]
	for _, a := range snap.NearbyAgents[1:] {
		if a.Distance < closest.Distance {
			closest = a
		}
	}

	friendly := 0
	for _, score := range snap.Relationships {
		if score > friendlyThreshold {
			friendly++
		}
	}

	summary := fmt.Sprintf("%d agents nearby. Closest: %s (%.1fm)",
		len(snap.NearbyAgents), closest.Name, closest.Distance)
	if friendly > 0 {
		summary += fmt.Sprintf(". %d friendly relationships", friendly)
	}
	return summary
}
