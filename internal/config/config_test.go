package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Oracle.Provider != "ollama" {
		t.Errorf("provider = %q", cfg.Oracle.Provider)
	}
	if time.Duration(cfg.DecisionInterval) != 5*time.Second {
		t.Errorf("decision interval = %s", time.Duration(cfg.DecisionInterval))
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].Name != "Agent_Alpha" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piano.yaml")
	body := `
state_path: /tmp/piano-state
decision_interval: 2s
oracle:
  provider: openrouter
  model: test/model
agents:
  - name: Agent_Builder
    traits: [diligent, methodical]
  - name: Agent_Scout
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StatePath != "/tmp/piano-state" {
		t.Errorf("state path = %q", cfg.StatePath)
	}
	if time.Duration(cfg.DecisionInterval) != 2*time.Second {
		t.Errorf("decision interval = %s", time.Duration(cfg.DecisionInterval))
	}
	if cfg.Oracle.Provider != "openrouter" || cfg.Oracle.Model != "test/model" {
		t.Errorf("oracle = %+v", cfg.Oracle)
	}
	if len(cfg.Agents) != 2 || cfg.Agents[0].Traits[1] != "methodical" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
	// Fields absent from the file keep their defaults.
	if time.Duration(cfg.OracleTimeout) != 30*time.Second {
		t.Errorf("oracle timeout = %s", time.Duration(cfg.OracleTimeout))
	}
}

func TestLoadRejectsMalformedYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("state_path: [unclosed"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
