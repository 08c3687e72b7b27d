package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tt/piano/internal/agent"
	"github.com/tt/piano/internal/config"
	"github.com/tt/piano/internal/journal"
	"github.com/tt/piano/internal/ltm"
	"github.com/tt/piano/internal/profiling"
)

func main() {
	log.Println("piano - concurrent cognitive architecture for autonomous agents")
	log.Println("===============================================================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	configPath := os.Getenv("PIANO_CONFIG")
	if configPath == "" {
		configPath = "piano.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if statePath := os.Getenv("STATE_PATH"); statePath != "" {
		cfg.StatePath = statePath
	}

	// API keys come from the environment only, never the config file.
	switch cfg.Oracle.Provider {
	case "openrouter":
		cfg.Oracle.APIKey = os.Getenv("OPENROUTER_API_KEY")
	case "anthropic":
		cfg.Oracle.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}

	// Ensure state directory exists
	os.MkdirAll(cfg.StatePath, 0755)

	if os.Getenv("PIANO_PROFILE") == "1" {
		if err := profiling.Init(true, filepath.Join(cfg.StatePath, "timings.jsonl")); err != nil {
			log.Printf("Warning: profiling disabled: %v", err)
		} else {
			defer profiling.Get().Close()
			log.Println("[main] Cycle profiling enabled")
		}
	}

	store, err := ltm.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open long-term memory store: %v", err)
	}
	defer store.Close()

	jrnl := journal.New(cfg.StatePath)

	manager := agent.NewManager(cfg.Oracle, store, jrnl, agent.Options{
		DecisionInterval:     cfg.DecisionInterval.Std(),
		OracleTimeout:        cfg.OracleTimeout.Std(),
		PerceptionCadence:    cfg.Cadences.Perception.Std(),
		SocialCadence:        cfg.Cadences.Social.Std(),
		GoalsCadence:         cfg.Cadences.Goals.Std(),
		ConsolidationCadence: cfg.Cadences.Consolidation.Std(),
		ActionAwareCadence:   cfg.Cadences.ActionAware.Std(),
	})

	for _, spec := range cfg.Agents {
		a, err := manager.Create(spec.Name, spec.Traits)
		if err != nil {
			log.Fatalf("Failed to create agent %s: %v", spec.Name, err)
		}
		log.Printf("[main] Created agent %s (%s) against %s oracle", a.Name(), a.ID(), cfg.Oracle.Provider)
	}

	manager.StartAll()
	log.Printf("[main] %d agents running. Press Ctrl+C to stop.", len(manager.List()))

	// Periodic fleet summary until shutdown
	summaryInterval := cfg.SummaryInterval.Std()
	if summaryInterval <= 0 {
		summaryInterval = 30 * time.Second
	}
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			for _, a := range manager.List() {
				sum := a.Summary()
				action := "none"
				if sum.Decision != nil {
					action = sum.Decision.Action
				}
				log.Printf("[main] %s: health %.1f, %d goals, last decision %s, success rate %.2f",
					sum.Name, sum.Health, len(sum.Goals), action, sum.SuccessRate)
			}
		case <-sigChan:
			log.Println("[main] Shutting down...")
			manager.StopAll()
			log.Println("[main] Goodbye!")
			return
		}
	}
}
