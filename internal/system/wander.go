package system

import (
	"math/rand/v2"
	"time"

	coresys "github.com/runeshard/server/internal/core/system"
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/movement"
	"github.com/runeshard/server/internal/world"
)

// Wanderer is a mobile that roams around a home point when nobody controls
// it. entities.Creature implements it.
type Wanderer interface {
	world.Mobile
	Controlled() bool
	Home() geo.Point3D
	RangeHome() int
}

// WanderSystem steps idle creatures one tile every interval. A creature that
// would leave its home range heads back toward home instead. A zero home
// means the creature roams freely. Phase 1 (Update).
type WanderSystem struct {
	w        *world.World
	v        *movement.Validator
	interval time.Duration
	elapsed  time.Duration
	rng      *rand.Rand
	moves    int
}

// NewWanderSystem wanders every interval; interval <= 0 disables it.
func NewWanderSystem(w *world.World, v *movement.Validator, interval time.Duration, seed uint64) *WanderSystem {
	return &WanderSystem{
		w:        w,
		v:        v,
		interval: interval,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

func (s *WanderSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// Moves counts successful steps since the system started.
func (s *WanderSystem) Moves() int { return s.moves }

func (s *WanderSystem) Update(dt time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.elapsed += dt
	if s.elapsed < s.interval {
		return
	}
	s.elapsed = 0

	for _, e := range s.w.Snapshot(world.KindMobile) {
		wr, ok := e.(Wanderer)
		if !ok || wr.Deleted() || wr.Controlled() || !wr.Alive() || wr.IsPlayer() {
			continue
		}
		if m := wr.Map(); m == nil || m == world.Internal {
			continue
		}
		if s.step(wr) {
			s.moves++
		}
	}
}

// step tries a random heading, then its two neighbours.
func (s *WanderSystem) step(wr Wanderer) bool {
	loc := wr.Location()
	d := geo.Direction(s.rng.IntN(8))
	if home, rng := wr.Home(), wr.RangeHome(); home != geo.Zero && rng > 0 {
		if !geo.Step(loc, d).InRange(home, rng) {
			d = geo.DirectionTo(loc.X, loc.Y, home.X, home.Y)
		}
	}
	for _, try := range [...]geo.Direction{d, d.Clockwise(), d.CounterClockwise()} {
		if s.v.Move(wr, try) {
			return true
		}
	}
	return false
}
