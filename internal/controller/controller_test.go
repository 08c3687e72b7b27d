package controller

import (
	"errors"
	"strings"
	"testing"

	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/modules"
	"github.com/tt/piano/internal/oracle"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

func newTestState() *state.State {
	return state.New(state.Identity{ID: "agent-1", Name: "Agent_Alpha", Traits: []string{"curious"}})
}

func TestParseWellFormedReply(t *testing.T) {
	c := New(newTestState(), &oracle.Static{}, nil, nil, 0, 0)

	d := c.parse("ACTION: place_block\nREASONING: continuing the wall")
	if d.Action != "place_block" || d.Reasoning != "continuing the wall" {
		t.Errorf("parsed %+v", d)
	}
}

func TestParseToleratesDecoration(t *testing.T) {
	c := New(newTestState(), &oracle.Static{}, nil, nil, 0, 0)

	cases := []string{
		"action: `mine_block`\nreasoning: need wood",
		"Some preamble.\nACTION: \"mine_block\"\nREASONING: need wood\ntrailing text",
		"ACTION:   MINE_BLOCK  \nREASONING: need wood",
	}
	for _, reply := range cases {
		if d := c.parse(reply); d.Action != "mine_block" {
			t.Errorf("parse(%q).Action = %q, want mine_block", reply, d.Action)
		}
	}
}

func TestParseGarbageDefaults(t *testing.T) {
	c := New(newTestState(), &oracle.Static{}, nil, nil, 0, 0)

	for _, reply := range []string{
		"",
		"I think I should dance around the fire",
		"ACTION: fly_to_the_moon\nREASONING: why not",
	} {
		d := c.parse(reply)
		if d.Action != DefaultAction {
			t.Errorf("parse(%q).Action = %q, want %q", reply, d.Action, DefaultAction)
		}
		if !ValidAction(d.Action) {
			t.Errorf("published action %q not in menu", d.Action)
		}
	}
}

func TestDecidePublishes(t *testing.T) {
	st := newTestState()
	c := New(st, &oracle.Static{Reply: "ACTION: wait\nREASONING: observing first"}, nil, nil, 0, 0)

	d := c.Decide()
	if d.Action != "wait" {
		t.Errorf("action = %q", d.Action)
	}
	if d.AgentID != "agent-1" || d.Timestamp.IsZero() {
		t.Errorf("decision not stamped: %+v", d)
	}

	published := st.Decision()
	if published == nil || published.Action != "wait" {
		t.Errorf("state decision = %+v", published)
	}
}

func TestDecideOracleFailureFallsBack(t *testing.T) {
	st := newTestState()
	c := New(st, &oracle.Static{Err: errors.New("connection refused")}, nil, nil, 0, 0)

	d := c.Decide()
	if d.Action != FallbackAction {
		t.Errorf("action = %q, want fallback %q", d.Action, FallbackAction)
	}
	if st.Decision() == nil {
		t.Error("fallback decision was not published")
	}
}

func TestDecideJournals(t *testing.T) {
	st := newTestState()
	j := journal.New(t.TempDir())
	c := New(st, &oracle.Static{Reply: "ACTION: turn_left\nREASONING: checking the corner"}, j, nil, 0, 0)

	c.Decide()

	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != journal.EntryDecision || entries[0].Summary != "turn_left" {
		t.Errorf("journal = %+v", entries)
	}
}

func TestGatherBoundsContext(t *testing.T) {
	st := newTestState()
	for i := 0; i < 5; i++ {
		st.AddMemory(types.TierWorking, types.MemoryItem{Event: "event", Type: types.EventRoutine})
	}
	entities := make([]types.Entity, 0, 8)
	for i := 0; i < 8; i++ {
		entities = append(entities, types.Entity{Name: "Agent_Peer", Distance: float64(i + 1)})
	}
	st.ApplyObservation(types.Observation{Entities: entities})
	st.SetLastAction(types.ActionResult{Action: "place_block", Success: true})

	c := New(st, &oracle.Static{}, nil, nil, 0, 0)
	bc := c.gather()

	if len(bc.RecentMemory) != maxContextMemories {
		t.Errorf("memories = %d, want %d", len(bc.RecentMemory), maxContextMemories)
	}
	if len(bc.NearbyAgents) != maxContextPeers {
		t.Errorf("peers = %d, want %d", len(bc.NearbyAgents), maxContextPeers)
	}
	if bc.LastAction != "place_block" {
		t.Errorf("last action = %q", bc.LastAction)
	}
}

func TestKeyInsightPerModule(t *testing.T) {
	cases := []struct {
		payload any
		want    string
	}{
		{modules.PerceptionOutput{SalientFeature: "Taking damage! Health: 5.0"}, "Taking damage! Health: 5.0"},
		{modules.SocialOutput{Summary: "2 agents nearby"}, "2 agents nearby"},
		{modules.GoalsOutput{ProposedGoals: []string{"Build a wall"}}, "Build a wall"},
		{modules.GoalsOutput{}, "No active goals"},
		{modules.ActionOutput{Status: "success"}, "Last action: success"},
		{modules.ConsolidationOutput{KeyMemory: "Nearly died to a creeper"}, "Nearly died to a creeper"},
		{struct{}{}, "No insight available"},
	}
	for _, tc := range cases {
		if got := keyInsight(types.ModuleOutput{Payload: tc.payload}); got != tc.want {
			t.Errorf("keyInsight(%T) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}

type fakePeers struct{ list []types.PeerSummary }

func (f fakePeers) Peers(string) []types.PeerSummary { return f.list }

func TestPromptIncludesPeersAndMenu(t *testing.T) {
	st := newTestState()
	peers := fakePeers{list: []types.PeerSummary{
		{Name: "Agent_Beta", Location: types.Location{X: 10, Z: -4}, LastAction: "place_block"},
	}}
	c := New(st, &oracle.Static{}, nil, peers, 0, 0)

	p := c.prompt(c.gather())
	for _, want := range []string{
		"Agent_Beta at (10,-4) doing place_block",
		"select_slot_4 (wood planks)",
		"ACTION: <name>",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}
