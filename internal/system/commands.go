package system

import (
	"fmt"
	"time"

	coresys "github.com/runeshard/server/internal/core/system"
	"go.uber.org/zap"
)

// CommandSystem runs commands queued by other goroutines, such as console
// input or script callbacks, on the tick goroutine. Phase 0 (Input).
type CommandSystem struct {
	queue      *coresys.CommandQueue
	maxPerTick int
	log        *zap.Logger
	failed     int
}

func NewCommandSystem(queue *coresys.CommandQueue, maxPerTick int, log *zap.Logger) *CommandSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &CommandSystem{queue: queue, maxPerTick: maxPerTick, log: log}
}

func (s *CommandSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *CommandSystem) Update(_ time.Duration) {
	for _, fn := range s.queue.Take(s.maxPerTick) {
		if err := s.safeCall(fn); err != nil {
			s.failed++
		}
	}
}

// Failed counts commands that panicked.
func (s *CommandSystem) Failed() int { return s.failed }

// safeCall runs one command so a bad command cannot stop the tick.
func (s *CommandSystem) safeCall(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("command panic recovered", zap.Any("panic", rec))
			err = fmt.Errorf("command panic: %v", rec)
		}
	}()
	fn()
	return nil
}
