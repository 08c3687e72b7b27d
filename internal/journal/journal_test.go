package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestJournalLogAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	j := New(tmpDir)

	if err := j.LogDecision("agent-1", "mine_block", "need wood for shelter"); err != nil {
		t.Fatalf("LogDecision failed: %v", err)
	}
	if err := j.LogOutcome("agent-1", "mine_block", "success", 1.0); err != nil {
		t.Fatalf("LogOutcome failed: %v", err)
	}
	if err := j.LogGoal("agent-1", "Build a shelter", "llm", 0.7); err != nil {
		t.Fatalf("LogGoal failed: %v", err)
	}

	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	if entries[0].Type != EntryDecision || entries[0].Summary != "mine_block" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Timestamp not stamped")
	}
	if entries[1].Type != EntryOutcome || entries[1].Data["status"] != "success" {
		t.Errorf("Unexpected outcome entry: %+v", entries[1])
	}
	if entries[2].Type != EntryGoal {
		t.Errorf("Unexpected goal entry: %+v", entries[2])
	}

	// Every line on disk is valid JSON.
	data, _ := os.ReadFile(filepath.Join(tmpDir, "journal.jsonl"))
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("Invalid JSON line: %s", line)
		}
	}
}

func TestJournalReadMissingFile(t *testing.T) {
	j := New(t.TempDir())
	entries, err := j.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if entries != nil {
		t.Errorf("Expected no entries, got %+v", entries)
	}
}
