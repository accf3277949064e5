package system

import (
	"context"
	"time"

	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/persist"
	"go.uber.org/zap"
)

// Saver is the persistence engine as the autosave loop sees it.
type Saver interface {
	Save(ctx context.Context) (persist.SaveInfo, error)
}

// AutosaveSystem periodically snapshots the whole world. Phase 2 (Persist).
// The save runs on the tick goroutine, so the world is still while it is
// serialized.
type AutosaveSystem struct {
	saver    Saver
	interval time.Duration
	timeout  time.Duration
	elapsed  time.Duration
	log      *zap.Logger
}

// NewAutosaveSystem saves every interval of tick time. interval <= 0
// disables periodic saves; SaveNow still works.
func NewAutosaveSystem(saver Saver, interval time.Duration, log *zap.Logger) *AutosaveSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &AutosaveSystem{
		saver:    saver,
		interval: interval,
		timeout:  5 * time.Minute,
		log:      log,
	}
}

func (s *AutosaveSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AutosaveSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.saver.Save(ctx); err != nil {
		// The previous snapshot is intact; try again next interval.
		s.log.Error("autosave failed", zap.Error(err))
	}
}

// SaveNow saves immediately and restarts the interval. Called for graceful
// shutdown.
func (s *AutosaveSystem) SaveNow(ctx context.Context) error {
	s.elapsed = 0
	_, err := s.saver.Save(ctx)
	return err
}
