package world

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// World is the context every subsystem that touches entities is handed:
// the loaded maps, the object table and the type registry. Each test builds
// its own.
type World struct {
	log   *zap.Logger
	table *Table
	types *TypeRegistry

	mapsMu sync.RWMutex
	maps   map[int]*Map
}

func New(types *TypeRegistry, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	if types == nil {
		types = NewTypeRegistry()
	}
	return &World{
		log:   log,
		table: NewTable(),
		types: types,
		maps:  make(map[int]*Map),
	}
}

func (w *World) Log() *zap.Logger     { return w.log }
func (w *World) Table() *Table        { return w.table }
func (w *World) Types() *TypeRegistry { return w.types }

// AddMap makes m available to entities and to the loader.
func (w *World) AddMap(m *Map) error {
	if m == nil || m == Internal {
		return fmt.Errorf("world: cannot add map %v", m)
	}
	w.mapsMu.Lock()
	defer w.mapsMu.Unlock()
	if _, dup := w.maps[m.id]; dup {
		return fmt.Errorf("world: map %d already added", m.id)
	}
	w.maps[m.id] = m
	return nil
}

// Map returns the map with id, Internal for InternalID, or nil.
func (w *World) Map(id int) *Map {
	if id == InternalID {
		return Internal
	}
	w.mapsMu.RLock()
	defer w.mapsMu.RUnlock()
	return w.maps[id]
}

// Maps returns the loaded maps ordered by id.
func (w *World) Maps() []*Map {
	w.mapsMu.RLock()
	out := make([]*Map, 0, len(w.maps))
	for _, m := range w.maps {
		out = append(out, m)
	}
	w.mapsMu.RUnlock()
	slices.SortFunc(out, func(a, b *Map) int { return cmp.Compare(a.id, b.id) })
	return out
}

// QueryCount sums the range queries served by every map.
func (w *World) QueryCount() int64 {
	var n int64
	for _, m := range w.Maps() {
		n += m.QueryCount()
	}
	return n
}

// NewMobile allocates a Serial, builds the mobile with construct and
// registers it. Place it with MoveToWorld.
func NewMobile[T Mobile](w *World, construct func(Serial) T) (T, error) {
	e, err := w.table.register(KindMobile, func(s Serial) Entity { return construct(s) })
	if err != nil {
		var zero T
		return zero, err
	}
	e.core().world = w
	return e.(T), nil
}

// NewItem allocates a Serial, builds the item with construct and registers it.
func NewItem[T Item](w *World, construct func(Serial) T) (T, error) {
	e, err := w.table.register(KindItem, func(s Serial) Entity { return construct(s) })
	if err != nil {
		var zero T
		return zero, err
	}
	e.core().world = w
	return e.(T), nil
}

// Register inserts an entity that already carries its Serial. The loader
// uses it for skeletons before any record is read.
func (w *World) Register(e Entity) error {
	if e.Deleted() {
		return ErrDeleted
	}
	if err := w.table.Insert(e); err != nil {
		return err
	}
	e.core().world = w
	return nil
}

// Place inserts e into the sector for its current map and location.
func (w *World) Place(e Entity) {
	if m := e.Map(); m != nil {
		m.Insert(e)
	}
}

// Discard drops a registered entity without running delete hooks. The
// loader uses it for records that failed to deserialize.
func (w *World) Discard(e Entity) {
	c := e.core()
	if c.sector != nil {
		c.m.remove(c)
	}
	w.table.Unregister(e)
	c.deleted = true
	c.world = nil
}

func (w *World) FindEntity(s Serial) Entity { return w.table.Find(s) }

func (w *World) FindMobile(s Serial) Mobile {
	m, _ := w.table.Find(s).(Mobile)
	return m
}

func (w *World) FindItem(s Serial) Item {
	it, _ := w.table.Find(s).(Item)
	return it
}

// Snapshot returns the live entities of kind (0 for all), ordered by Serial.
func (w *World) Snapshot(kind Kind) []Entity { return w.table.Snapshot(kind) }

func (w *World) Count(kind Kind) int { return w.table.Count(kind) }
