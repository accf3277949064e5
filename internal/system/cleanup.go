package system

import (
	"time"

	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/world"
)

// CleanupSystem deletes entities queued during the tick once every other
// system has run. Phase 3 (Cleanup).
type CleanupSystem struct {
	pending []world.Entity
}

func NewCleanupSystem() *CleanupSystem {
	return &CleanupSystem{}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

// Defer queues e for deletion at the end of the tick. Tick goroutine only.
func (s *CleanupSystem) Defer(e world.Entity) {
	if e != nil && !e.Deleted() {
		s.pending = append(s.pending, e)
	}
}

func (s *CleanupSystem) Update(_ time.Duration) {
	for i, e := range s.pending {
		if !e.Deleted() {
			e.Delete()
		}
		s.pending[i] = nil
	}
	s.pending = s.pending[:0]
}
