package world

import "github.com/runeshard/server/internal/geo"

// Mobile is a creature or player character. The capability methods form the
// surface the movement validator reads; content types override them by
// defining their own methods.
type Mobile interface {
	Entity
	Name() string
	Body() uint16
	Direction() geo.Direction
	Alive() bool
	IsDeadBondedPet() bool
	IsPlayer() bool
	CanFly() bool
	CanSwim() bool
	CantWalkLand() bool
	CanOpenDoors() bool
	CanMoveOverObstacles() bool
	SetDirection(d geo.Direction)

	mobileBase() *MobileBase
}

// MobileFlags are the persisted capability bits of a mobile.
type MobileFlags uint32

const (
	FlagDead MobileFlags = 1 << iota
	FlagDeadBondedPet
	FlagPlayer
	FlagCanFly
	FlagCanSwim
	FlagCantWalkLand
	FlagCanOpenDoors
	FlagCanMoveOverObstacles
)

// Body ids with fixed movement meaning.
const (
	BodyNone      uint16 = 0
	BodyGhostMale uint16 = 0x192
	BodyGhostFem  uint16 = 0x193
	BodyStaff     uint16 = 0x3DB // passes closed doors
)

const mobileVersion = 2

// MobileBase implements the Entity and Mobile plumbing. Embed it and call
// InitMobile from the type's constructor.
type MobileBase struct {
	entityCore
	name  string
	body  uint16
	dir   geo.Direction
	flags MobileFlags
}

// InitMobile binds the base to its outer value and serial.
func (m *MobileBase) InitMobile(self Mobile, s Serial) {
	m.self = self
	m.kind = KindMobile
	m.serial = s
}

func (m *MobileBase) mobileBase() *MobileBase { return m }

func (m *MobileBase) Name() string             { return m.name }
func (m *MobileBase) Body() uint16             { return m.body }
func (m *MobileBase) Direction() geo.Direction { return m.dir }
func (m *MobileBase) Flags() MobileFlags       { return m.flags }

func (m *MobileBase) SetName(name string)          { m.name = name }
func (m *MobileBase) SetBody(body uint16)          { m.body = body }
func (m *MobileBase) SetDirection(d geo.Direction) { m.dir = d.Mask() }

// SetFlag turns f on or off.
func (m *MobileBase) SetFlag(f MobileFlags, on bool) {
	if on {
		m.flags |= f
	} else {
		m.flags &^= f
	}
}

func (m *MobileBase) Alive() bool                { return m.flags&FlagDead == 0 }
func (m *MobileBase) IsDeadBondedPet() bool      { return m.flags&FlagDeadBondedPet != 0 }
func (m *MobileBase) IsPlayer() bool             { return m.flags&FlagPlayer != 0 }
func (m *MobileBase) CanFly() bool               { return m.flags&FlagCanFly != 0 }
func (m *MobileBase) CanSwim() bool              { return m.flags&FlagCanSwim != 0 }
func (m *MobileBase) CantWalkLand() bool         { return m.flags&FlagCantWalkLand != 0 }
func (m *MobileBase) CanOpenDoors() bool         { return m.flags&FlagCanOpenDoors != 0 }
func (m *MobileBase) CanMoveOverObstacles() bool { return m.flags&FlagCanMoveOverObstacles != 0 }

// Serialize writes the mobile base record. Newer versions prepend their
// fields so each older layout stays a suffix of the current one.
func (m *MobileBase) Serialize(w *Writer) {
	w.WriteVersion(mobileVersion)

	// 2
	w.WriteUint32(uint32(m.flags))
	// 1
	w.WriteUint8(uint8(m.dir))
	// 0
	w.WriteString(m.name)
	w.WriteUint16(m.body)
	w.WritePoint3D(m.loc)
	w.WriteMap(m.m)
}

// Deserialize reads any shipped mobile base version. Location and map are
// assigned without touching sectors; the loader places entities once every
// record has been read.
func (m *MobileBase) Deserialize(r *Reader) error {
	version, err := r.ReadVersion("MobileBase", mobileVersion)
	if err != nil {
		return err
	}
	switch version {
	case 2:
		m.flags = MobileFlags(r.ReadUint32())
		fallthrough
	case 1:
		m.dir = geo.Direction(r.ReadUint8()).Mask()
		fallthrough
	case 0:
		m.name = r.ReadString()
		m.body = r.ReadUint16()
		m.loc = r.ReadPoint3D()
		m.m = r.ReadMap()
	}
	return r.Err()
}
