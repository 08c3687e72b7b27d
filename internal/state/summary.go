package state

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/tt/piano/internal/types"
)

// Summary is the read-only projection exposed for dashboards and external
// observability. It carries no mutable references into the state.
type Summary struct {
	AgentID     string          `json:"agent_id"`
	Name        string          `json:"name"`
	Role        int             `json:"role"`
	Traits      []string        `json:"traits"`
	Location    types.Location  `json:"location"`
	Health      float64         `json:"health"`
	Hunger      float64         `json:"hunger"`
	Goals       []types.Goal    `json:"goals"`
	NearbyNames []string        `json:"nearby_agents"`
	Memory      MemoryCounts    `json:"memory"`
	Decision    *types.Decision `json:"decision,omitempty"`
	SuccessRate float64         `json:"action_success_rate"`
	Runtime     *RuntimeStats   `json:"runtime,omitempty"`
}

// MemoryCounts reports tier sizes.
type MemoryCounts struct {
	Working   int `json:"working"`
	ShortTerm int `json:"short_term"`
	LongTerm  int `json:"long_term"`
}

// RuntimeStats reports process-level resource usage for the monitoring view.
type RuntimeStats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
	UptimeSec  float64 `json:"uptime_sec"`
}

var processStart = time.Now()

// Summary builds the observability projection from one snapshot.
func (s *State) Summary() Summary {
	snap := s.Snapshot()

	names := make([]string, 0, len(snap.NearbyAgents))
	for _, a := range snap.NearbyAgents {
		names = append(names, a.Name)
	}

	return Summary{
		AgentID:     snap.Identity.ID,
		Name:        snap.Identity.Name,
		Role:        snap.Identity.Role,
		Traits:      snap.Identity.Traits,
		Location:    snap.Location,
		Health:      snap.Health,
		Hunger:      snap.Hunger,
		Goals:       snap.Goals,
		NearbyNames: names,
		Memory: MemoryCounts{
			Working:   len(snap.Working),
			ShortTerm: len(snap.ShortTerm),
			LongTerm:  len(snap.LongTerm),
		},
		Decision:    snap.Decision,
		SuccessRate: snap.SuccessRate,
		Runtime:     runtimeStats(),
	}
}

// runtimeStats samples this process's CPU and memory. Best effort: returns
// nil if the process can't be inspected.
func runtimeStats() *RuntimeStats {
	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	stats := &RuntimeStats{
		PID:       pid,
		UptimeSec: time.Since(processStart).Seconds(),
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		stats.RSSBytes = mem.RSS
	}
	return stats
}
