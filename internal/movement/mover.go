// Package movement decides whether a mobile can step one tile in a given
// direction and at what altitude it lands.
package movement

import (
	"github.com/runeshard/server/internal/geo"
	"github.com/runeshard/server/internal/world"
)

// Mover is a value snapshot of a mobile's physical capabilities, taken fresh
// for each check and never stored.
type Mover struct {
	Location geo.Point3D
	Map      *world.Map
	// Self is excluded from mobile blocking at the destination. May be nil.
	Self world.Mobile

	Body                 uint16
	Alive                bool
	IsDeadBondedPet      bool
	IsPlayer             bool
	CanFly               bool
	CanSwim              bool
	CantWalkLand         bool
	CanOpenDoors         bool
	CanMoveOverObstacles bool
}

// Snapshot captures m's current state.
func Snapshot(m world.Mobile) Mover {
	return Mover{
		Location:             m.Location(),
		Map:                  m.Map(),
		Self:                 m,
		Body:                 m.Body(),
		Alive:                m.Alive(),
		IsDeadBondedPet:      m.IsDeadBondedPet(),
		IsPlayer:             m.IsPlayer(),
		CanFly:               m.CanFly(),
		CanSwim:              m.CanSwim(),
		CantWalkLand:         m.CantWalkLand(),
		CanOpenDoors:         m.CanOpenDoors(),
		CanMoveOverObstacles: m.CanMoveOverObstacles(),
	}
}

// Ghost reports whether the mover passes through doors, mobiles and dynamic
// obstacles.
func (mv Mover) Ghost() bool { return !mv.Alive || mv.IsDeadBondedPet }

// IgnoresDoors reports whether closed doors are transparent to the mover.
func (mv Mover) IgnoresDoors() bool {
	return mv.Ghost() || mv.Body == world.BodyStaff || mv.CanOpenDoors
}

// GhostBarrier is implemented by items that stop ghosts. A barrier blocks a
// ghost at any altitude; other movers treat it by its tile flags.
type GhostBarrier interface {
	BlocksGhosts() bool
}

// canMoveOver reports whether mv may share a tile with t.
func (mv Mover) canMoveOver(t world.Mobile) bool {
	return mv.Ghost() || !t.Alive() || t.IsDeadBondedPet()
}
