// Package entities holds the concrete entity types the server ships with.
// Each type embeds a world base, keeps its own record version and registers
// a stable type tag.
package entities

import "github.com/runeshard/server/internal/world"

// Register adds every type in this package to reg.
func Register(reg *world.TypeRegistry) {
	reg.Register(TagCreature, world.KindMobile, func(s world.Serial) world.Entity { return NewCreature(s) })
	reg.Register(TagContainer, world.KindItem, func(s world.Serial) world.Entity { return NewContainer(s) })
	reg.Register(TagDoor, world.KindItem, func(s world.Serial) world.Entity { return NewDoor(s) })
	reg.Register(TagKey, world.KindItem, func(s world.Serial) world.Entity { return NewKey(s) })
	reg.Register(TagGhostBarrier, world.KindItem, func(s world.Serial) world.Entity { return NewGhostBarrier(s) })
	reg.Register(TagStatic, world.KindItem, func(s world.Serial) world.Entity { return NewStatic(s) })
}

// Type tags. These are written into every save and must never change.
const (
	TagCreature     = "Creature"
	TagContainer    = "Container"
	TagDoor         = "Door"
	TagKey          = "Key"
	TagGhostBarrier = "GhostBarrier"
	TagStatic       = "Static"
)
