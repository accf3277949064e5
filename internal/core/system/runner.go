package system

import (
	"slices"
	"time"
)

// Runner drives the shard's tick: queued commands first, then creature
// wandering, the autosave check and the deferred-delete sweep. Systems
// sharing a phase run in registration order.
type Runner struct {
	systems []System
}

func NewRunner() *Runner {
	return &Runner{systems: make([]System, 0, 8)}
}

// Register inserts s after every system of the same or an earlier phase.
func (r *Runner) Register(s System) {
	i, _ := slices.BinarySearchFunc(r.systems, s.Phase()+1, func(have System, p Phase) int {
		return int(have.Phase() - p)
	})
	r.systems = slices.Insert(r.systems, i, s)
}

// Tick advances every phase once.
func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.systems {
		s.Update(dt)
	}
}

// TickPhase runs only the systems of phase. Shutdown uses it to drain the
// command queue and flush pending deletes before the final save.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}
