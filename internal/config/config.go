// Package config loads the yaml configuration file. A missing file is
// not an error: every field has a usable default so the binary runs with
// no setup beyond an oracle being reachable.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tt/piano/internal/oracle"
)

// Duration wraps time.Duration so yaml accepts "5s" style strings and
// bare numbers (seconds).
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or a number of seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// AgentSpec describes one agent to create at startup.
type AgentSpec struct {
	Name   string   `yaml:"name"`
	Traits []string `yaml:"traits"`
}

// Cadences overrides the per-module cycle times. Zero means the module
// default.
type Cadences struct {
	Perception    Duration `yaml:"perception"`
	Social        Duration `yaml:"social"`
	Goals         Duration `yaml:"goals"`
	Consolidation Duration `yaml:"consolidation"`
	ActionAware   Duration `yaml:"action_awareness"`
}

// Config is the full runtime configuration.
type Config struct {
	StatePath        string        `yaml:"state_path"`
	DecisionInterval Duration      `yaml:"decision_interval"`
	OracleTimeout    Duration      `yaml:"oracle_timeout"`
	SummaryInterval  Duration      `yaml:"summary_interval"`
	Oracle           oracle.Config `yaml:"oracle"`
	Cadences         Cadences      `yaml:"cadences"`
	Agents           []AgentSpec   `yaml:"agents"`
}

// Default returns the configuration used when no file is present: one
// agent against a local ollama.
func Default() Config {
	return Config{
		StatePath:        "state",
		DecisionInterval: Duration(5 * time.Second),
		OracleTimeout:    Duration(30 * time.Second),
		SummaryInterval:  Duration(30 * time.Second),
		Oracle: oracle.Config{
			Provider: "ollama",
			BaseURL:  "http://localhost:11434",
		},
		Agents: []AgentSpec{{Name: "Agent_Alpha"}},
	}
}

// Load reads the config file, layering it over the defaults. A missing
// file returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.StatePath == "" {
		cfg.StatePath = "state"
	}
	if len(cfg.Agents) == 0 {
		cfg.Agents = []AgentSpec{{Name: "Agent_Alpha"}}
	}
	return cfg, nil
}
