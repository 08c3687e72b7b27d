// Package modules implements the five concurrent processing modules of the
// cognitive architecture and the generic runner that schedules them. Each
// module reads the shared state on its own cadence and publishes one named
// output record per cycle; the bottleneck controller later filters those
// outputs into its bounded context.
package modules

import (
	"sync"
	"time"

	"github.com/tt/piano/internal/logging"
	"github.com/tt/piano/internal/profiling"
	"github.com/tt/piano/internal/state"
)

// Module is one processing unit. Process reads the blackboard (through
// snapshots and accessors, never raw fields) and returns the payload to
// publish under the module's name.
type Module interface {
	Name() string
	Cadence() time.Duration
	Process(st *state.State) (any, error)
}

// errBackoff replaces the normal cadence for one cycle after a processing
// error, so a tight-cadence module can't spin on a persistent failure.
const errBackoff = time.Second

// Runner schedules one module against one agent state: sleep, process,
// publish, repeat. A failing cycle is logged and retried after a backoff;
// the loop only exits on Stop. Stop is safe to call from any goroutine,
// more than once, and joins the loop before returning so the state can be
// torn down afterwards.
type Runner struct {
	module   Module
	state    *state.State
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a runner for one module.
func NewRunner(m Module, st *state.State) *Runner {
	return &Runner{
		module:   m,
		state:    st,
		stopChan: make(chan struct{}),
	}
}

// Start launches the processing loop.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.loop()
	logging.Debug(r.module.Name(), "started (cadence %s)", r.module.Cadence())
}

// Stop signals the loop and waits for it to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Runner) loop() {
	defer r.wg.Done()

	agentName := r.state.Identity().Name
	delay := r.module.Cadence()
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-timer.C:
		}

		stop := profiling.Get().Start(agentName, r.module.Name())
		output, err := r.module.Process(r.state)
		stop()
		if err != nil {
			logging.Warn(r.module.Name(), "cycle failed: %v", err)
			delay = errBackoff
		} else {
			r.state.PublishModuleOutput(r.module.Name(), output)
			delay = r.module.Cadence()
		}
		timer.Reset(delay)
	}
}
