package movement

import (
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/world"
	"go.uber.org/zap"
)

// Altitude rules. A mover may step up at most StepHeight above the top of
// the surface it stands on and needs PersonHeight of clear space above the
// surface it lands on. Two mobiles block each other when their Z values are
// closer than MobileClearance.
const (
	StepHeight      = 2
	PersonHeight    = 16
	MobileClearance = 15
)

// Recorder receives the outcome of every check. observe.Metrics implements it.
type Recorder interface {
	RecordMovement(ok bool)
}

// Validator checks single-tile steps. It holds no per-call state and is
// safe for concurrent use.
type Validator struct {
	log *zap.Logger
	rec Recorder
}

// NewValidator returns a validator. log and rec may be nil.
func NewValidator(log *zap.Logger, rec Recorder) *Validator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{log: log, rec: rec}
}

// CheckMovement reports whether mv can step one tile toward d and the Z it
// would land at. On rejection newZ is the mover's current Z.
//
// Diagonal steps also test the two orthogonal neighbours: players need both
// passable, other movers need at least one. Map edges and the boundaries of
// locked or guarded regions reject every mover, flyers included.
func (v *Validator) CheckMovement(mv Mover, d geo.Direction) (ok bool, newZ int) {
	ok, newZ = v.check(mv, d)
	if v.rec != nil {
		v.rec.RecordMovement(ok)
	}
	return ok, newZ
}

func (v *Validator) check(mv Mover, d geo.Direction) (bool, int) {
	start := mv.Location
	m := mv.Map
	if m == nil || m == world.Internal || m.Grid() == nil {
		return false, start.Z
	}
	d = d.Mask()
	dest := geo.Step(start, d)
	if !m.InBounds(start.X, start.Y) || !m.InBounds(dest.X, dest.Y) {
		return false, start.Z
	}
	if regionBlocks(m, start, dest) {
		return false, start.Z
	}

	if mv.CanFly {
		fwd := gather(mv, m, dest.X, dest.Y, false)
		return true, max(start.Z, fwd.highestTop())
	}

	here := gather(mv, m, start.X, start.Y, false)
	low, top := startZ(mv, here)

	fwd := gather(mv, m, dest.X, dest.Y, true)
	if mv.Ghost() && fwd.ghostBarrier() {
		return false, start.Z
	}
	ok, z := best(mv, fwd, low, top)
	if ok && fwd.mobileBlocks(mv, z) {
		ok = false
	}

	if ok && d.Diagonal() {
		left := v.neighbourOK(mv, m, start, d.CounterClockwise(), low, top)
		right := v.neighbourOK(mv, m, start, d.Clockwise(), low, top)
		if mv.IsPlayer {
			ok = left && right
		} else {
			ok = left || right
		}
	}

	if !ok {
		return false, start.Z
	}
	return true, z
}

func (v *Validator) neighbourOK(mv Mover, m *world.Map, start geo.Point3D, d geo.Direction, low, top int) bool {
	p := geo.Step(start, d)
	if !m.InBounds(p.X, p.Y) {
		return false
	}
	ok, _ := best(mv, gather(mv, m, p.X, p.Y, false), low, top)
	return ok
}

// regionBlocks rejects any step across the boundary of a locked or guarded
// region, entering or leaving.
func regionBlocks(m *world.Map, from, to geo.Point3D) bool {
	a, b := m.RegionAt(from.X, from.Y), m.RegionAt(to.X, to.Y)
	if a == b {
		return false
	}
	return sealed(a) || sealed(b)
}

func sealed(r *world.Region) bool { return r != nil && (r.Locked || r.Guarded) }

// Move checks the step for mob and applies it: the mobile turns to face d
// and, if the step is legal, moves to the destination at the resolved Z.
func (v *Validator) Move(mob world.Mobile, d geo.Direction) bool {
	if mob == nil || mob.Deleted() {
		return false
	}
	mv := Snapshot(mob)
	ok, z := v.CheckMovement(mv, d)
	mob.SetDirection(d)
	if !ok {
		v.log.Debug("move rejected",
			zap.Stringer("serial", mob.Serial()),
			zap.Stringer("from", mv.Location),
			zap.Stringer("dir", d.Mask()))
		return false
	}
	dest := geo.Step(mv.Location, d.Mask())
	dest.Z = z
	mob.SetLocation(dest)
	return true
}
