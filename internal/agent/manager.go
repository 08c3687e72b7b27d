package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/ltm"
	"github.com/tt/piano/internal/oracle"
	"github.com/tt/piano/internal/state"
	"github.com/tt/piano/internal/types"
)

// DefaultTraits apply when an agent is created without any.
var DefaultTraits = []string{"curious", "cooperative"}

// Manager owns the agent fleet. It implements controller.PeerLister by
// snapshotting each agent in turn, never holding two agents' state locks
// at once.
type Manager struct {
	oracleCfg oracle.Config
	store     *ltm.Store // nil disables persistence
	journal   *journal.Journal
	opts      Options

	mu     sync.RWMutex
	agents map[string]*Agent
}

// NewManager creates an empty fleet sharing one oracle config, store and
// journal.
func NewManager(oracleCfg oracle.Config, store *ltm.Store, jrnl *journal.Journal, opts Options) *Manager {
	return &Manager{
		oracleCfg: oracleCfg,
		store:     store,
		journal:   jrnl,
		opts:      opts,
		agents:    make(map[string]*Agent),
	}
}

// Create builds and registers a new agent (not yet running). The oracle
// is constructed per agent so a provider misconfiguration surfaces here,
// not mid-decision.
func (m *Manager) Create(name string, traits []string) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name required")
	}
	if len(traits) == 0 {
		traits = append([]string(nil), DefaultTraits...)
	}

	o, err := oracle.New(m.oracleCfg)
	if err != nil {
		return nil, fmt.Errorf("oracle for %s: %w", name, err)
	}

	identity := state.Identity{
		ID:     uuid.NewString(),
		Name:   name,
		Traits: traits,
	}
	a := New(identity, o, m.store, m.journal, m, m.opts)
	if err := a.Restore(m.store); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.agents[a.ID()] = a
	m.mu.Unlock()
	return a, nil
}

// Get returns an agent by ID.
func (m *Manager) Get(id string) (*Agent, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	return a, ok
}

// List returns all agents in no particular order.
func (m *Manager) List() []*Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out
}

// Delete stops and removes an agent.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	a, ok := m.agents[id]
	delete(m.agents, id)
	m.mu.Unlock()

	if ok {
		a.Stop()
	}
	return ok
}

// StartAll launches every registered agent.
func (m *Manager) StartAll() {
	for _, a := range m.List() {
		a.Start()
	}
}

// StopAll stops every agent and joins all their loops.
func (m *Manager) StopAll() {
	for _, a := range m.List() {
		a.Stop()
	}
}

// Peers implements controller.PeerLister: the public view of every other
// agent. Each agent is snapshotted independently; the caller's own state
// lock is never held while this runs.
func (m *Manager) Peers(excludeID string) []types.PeerSummary {
	var peers []types.PeerSummary
	for _, a := range m.List() {
		if a.ID() == excludeID {
			continue
		}
		peers = append(peers, a.PeerSummary())
	}
	return peers
}
