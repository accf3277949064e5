package world

import (
	"fmt"
	"slices"
	"sync"
)

// Factory builds an empty entity bound to s. It is the deserialization
// constructor: fields are filled in later by Deserialize.
type Factory func(s Serial) Entity

// TypeInfo describes one registered entity type.
type TypeInfo struct {
	Tag  string
	Kind Kind
	New  Factory
}

// TypeRegistry maps stable type tags to factories. It is populated at
// startup; duplicate or inconsistent registrations are programming errors
// and panic.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*TypeInfo
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*TypeInfo)}
}

// Register maps tag to factory. The factory is called once with Zero to
// check that the produced entity reports the same tag and kind.
func (reg *TypeRegistry) Register(tag string, kind Kind, factory Factory) {
	if tag == "" || factory == nil {
		panic("world: Register with empty tag or nil factory")
	}
	sample := factory(Zero)
	if sample == nil {
		panic(fmt.Sprintf("world: factory for %q returned nil", tag))
	}
	if sample.TypeTag() != tag {
		panic(fmt.Sprintf("world: factory for %q builds %q", tag, sample.TypeTag()))
	}
	if sample.Kind() != kind {
		panic(fmt.Sprintf("world: factory for %q builds a %s, registered as %s", tag, sample.Kind(), kind))
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, dup := reg.types[tag]; dup {
		panic(fmt.Sprintf("world: type %q registered twice", tag))
	}
	reg.types[tag] = &TypeInfo{Tag: tag, Kind: kind, New: factory}
}

// Lookup returns the type registered under tag.
func (reg *TypeRegistry) Lookup(tag string) (*TypeInfo, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	ti, ok := reg.types[tag]
	return ti, ok
}

// Construct builds a skeleton for tag at s. A panicking factory is reported
// as an error rather than taking the caller down.
func (reg *TypeRegistry) Construct(tag string, s Serial) (e Entity, err error) {
	ti, ok := reg.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
	if KindOf(s) != ti.Kind {
		return nil, fmt.Errorf("%w: %s for %q", ErrWrongKind, s, tag)
	}
	defer func() {
		if r := recover(); r != nil {
			e = nil
			err = fmt.Errorf("world: factory for %q panicked: %v", tag, r)
		}
	}()
	e = ti.New(s)
	if e == nil || e.Serial() != s {
		return nil, fmt.Errorf("world: factory for %q did not bind serial %s", tag, s)
	}
	return e, nil
}

// Tags returns the registered tags in sorted order.
func (reg *TypeRegistry) Tags() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.types))
	for tag := range reg.types {
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
