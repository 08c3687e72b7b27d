// Package journal appends a jsonl trace of agent decisions, action
// outcomes and goal changes under the state directory. Best-effort
// observability: callers log write errors and move on.
package journal

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType identifies what kind of journal entry this is
type EntryType string

const (
	EntryDecision EntryType = "decision" // controller picked an action
	EntryOutcome  EntryType = "outcome"  // verifier resolved an expectation
	EntryGoal     EntryType = "goal"     // a goal entered the goal list
)

// Entry represents a single journal entry
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Type      EntryType      `json:"type"`
	AgentID   string         `json:"agent_id,omitempty"`
	Summary   string         `json:"summary,omitempty"`   // action, status or goal text
	Reasoning string         `json:"reasoning,omitempty"` // why this decision
	Data      map[string]any `json:"data,omitempty"`      // flexible extra data
}

// Journal writes observability entries to state/journal.jsonl
type Journal struct {
	path string
	mu   sync.Mutex
}

// New creates a journal writer rooted at the state directory.
func New(statePath string) *Journal {
	return &Journal{
		path: filepath.Join(statePath, "journal.jsonl"),
	}
}

// Log writes an entry to the journal
func (j *Journal) Log(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// LogDecision records one controller decision.
func (j *Journal) LogDecision(agentID, action, reasoning string) error {
	return j.Log(Entry{
		Type:      EntryDecision,
		AgentID:   agentID,
		Summary:   action,
		Reasoning: reasoning,
	})
}

// LogOutcome records a resolved action expectation.
func (j *Journal) LogOutcome(agentID, action, status string, matchScore float64) error {
	return j.Log(Entry{
		Type:    EntryOutcome,
		AgentID: agentID,
		Summary: action,
		Data:    map[string]any{"status": status, "match_score": matchScore},
	})
}

// LogGoal records a goal entering the goal list.
func (j *Journal) LogGoal(agentID, description, source string, priority float64) error {
	return j.Log(Entry{
		Type:    EntryGoal,
		AgentID: agentID,
		Summary: description,
		Data:    map[string]any{"source": source, "priority": priority},
	})
}

// Read returns all entries, oldest first. A missing file means no entries.
func (j *Journal) Read() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip torn trailing writes
		}
		entries = append(entries, e)
	}
	return entries, nil
}
