package entities

import (
	"errors"
	"slices"

	"github.com/runeshard/server/internal/world"
)

const containerVersion = 1

// DefaultMaxItems caps how many items a container holds.
const DefaultMaxItems = 125

var ErrContainerFull = errors.New("entities: container is full")

// Container holds child items. Children carry the container as their parent
// and are never indexed in a sector.
type Container struct {
	world.ItemBase
	items    []world.Item
	maxItems int
}

func NewContainer(s world.Serial) *Container {
	c := &Container{maxItems: DefaultMaxItems}
	c.InitItem(c, s)
	c.SetItemID(0xE75)
	return c
}

func (c *Container) TypeTag() string { return TagContainer }

func (c *Container) MaxItems() int { return c.maxItems }

func (c *Container) SetMaxItems(n int) { c.maxItems = n }

// Items returns a copy of the children.
func (c *Container) Items() []world.Item { return slices.Clone(c.items) }

// AddItem moves it into the container.
func (c *Container) AddItem(it world.Item) error {
	if it == nil || it.Deleted() {
		return world.ErrDeleted
	}
	if slices.Contains(c.items, it) {
		return nil
	}
	if len(c.items) >= c.maxItems {
		return ErrContainerFull
	}
	if prev, ok := it.Parent().(*Container); ok && prev != c {
		prev.RemoveItem(it)
	}
	setParent(it, c)
	c.items = append(c.items, it)
	return nil
}

// RemoveItem takes it out without placing it anywhere; it stays on the
// container's map at its last location.
func (c *Container) RemoveItem(it world.Item) {
	i := slices.Index(c.items, it)
	if i < 0 {
		return
	}
	c.items = slices.Delete(c.items, i, i+1)
	if it.Parent() == world.Entity(c) {
		setParent(it, nil)
	}
}

// OnDelete deletes the contents along with the container.
func (c *Container) OnDelete() {
	children := c.items
	c.items = nil
	for _, it := range children {
		it.Delete()
	}
}

func (c *Container) Serialize(w *world.Writer) {
	c.ItemBase.Serialize(w)
	w.WriteVersion(containerVersion)

	// 1
	w.WriteEncodedInt(c.maxItems)
	// 0
	w.WriteItemList(c.items)
}

func (c *Container) Deserialize(r *world.Reader) error {
	if err := c.ItemBase.Deserialize(r); err != nil {
		return err
	}
	version, err := r.ReadVersion(TagContainer, containerVersion)
	if err != nil {
		return err
	}
	switch version {
	case 1:
		c.maxItems = r.ReadEncodedInt()
		fallthrough
	case 0:
		c.items = r.ReadItemList()
	}
	if version < 1 {
		c.maxItems = DefaultMaxItems
	}
	return r.Err()
}

// parentSetter is satisfied by every type embedding world.ItemBase.
type parentSetter interface {
	SetParent(p world.Entity)
}

func setParent(it world.Item, p world.Entity) {
	if ps, ok := it.(parentSetter); ok {
		ps.SetParent(p)
	}
}
