package world

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

const tableShards = 64

type tableShard struct {
	mu sync.RWMutex
	m  map[Serial]Entity
}

// Table maps Serials to live entities. Lookups take one shard's read lock;
// allocation is serialized on the counter lock. Each kind has its own
// monotonic counter that wraps within the kind's range, skipping Serials
// that are still live.
type Table struct {
	shards [tableShards]tableShard

	counterMu sync.Mutex
	last      map[Kind]Serial
	live      map[Kind]int
	ranges    map[Kind][2]Serial
}

func NewTable() *Table {
	return newTableWithRanges(
		[2]Serial{MinMobileSerial, MaxMobileSerial},
		[2]Serial{MinItemSerial, MaxItemSerial},
	)
}

func newTableWithRanges(mobiles, items [2]Serial) *Table {
	t := &Table{
		last:   map[Kind]Serial{KindMobile: mobiles[0] - 1, KindItem: items[0] - 1},
		live:   make(map[Kind]int, 2),
		ranges: map[Kind][2]Serial{KindMobile: mobiles, KindItem: items},
	}
	for i := range t.shards {
		t.shards[i].m = make(map[Serial]Entity)
	}
	return t
}

func (t *Table) shard(s Serial) *tableShard {
	return &t.shards[uint32(s)%tableShards]
}

// register allocates the next free Serial of kind, builds the entity with
// construct and inserts it, all under the counter lock.
func (t *Table) register(kind Kind, construct func(Serial) Entity) (Entity, error) {
	t.counterMu.Lock()
	defer t.counterMu.Unlock()

	rg := t.ranges[kind]
	size := int64(rg[1]) - int64(rg[0]) + 1
	if int64(t.live[kind]) >= size {
		return nil, fmt.Errorf("%w: %s", ErrSerialExhausted, kind)
	}

	s := t.last[kind]
	for {
		if s >= rg[1] || s < rg[0] {
			s = rg[0]
		} else {
			s++
		}
		if t.Find(s) == nil {
			break
		}
	}

	e := construct(s)
	if e == nil || e.Serial() != s {
		return nil, fmt.Errorf("world: constructor did not keep serial %s", s)
	}
	sh := t.shard(s)
	sh.mu.Lock()
	sh.m[s] = e
	sh.mu.Unlock()

	t.last[kind] = s
	t.live[kind]++
	return e, nil
}

// Insert adds e under its existing Serial. Used by the loader; it raises the
// kind's counter past s so fresh allocations start after loaded entities.
func (t *Table) Insert(e Entity) error {
	s := e.Serial()
	kind := e.Kind()
	if KindOf(s) != kind {
		return fmt.Errorf("%w: %s for %s", ErrWrongKind, s, kind)
	}

	t.counterMu.Lock()
	defer t.counterMu.Unlock()

	sh := t.shard(s)
	sh.mu.Lock()
	if _, ok := sh.m[s]; ok {
		sh.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSerialInUse, s)
	}
	sh.m[s] = e
	sh.mu.Unlock()

	t.live[kind]++
	if s > t.last[kind] {
		t.last[kind] = s
	}
	return nil
}

// Find returns the live entity with Serial s, or nil.
func (t *Table) Find(s Serial) Entity {
	sh := t.shard(s)
	sh.mu.RLock()
	e := sh.m[s]
	sh.mu.RUnlock()
	return e
}

// Unregister removes e's mapping. The Serial is not recycled by the counter
// until it wraps.
func (t *Table) Unregister(e Entity) {
	s := e.Serial()
	sh := t.shard(s)
	sh.mu.Lock()
	cur, ok := sh.m[s]
	if ok && cur == e {
		delete(sh.m, s)
	}
	sh.mu.Unlock()
	if ok && cur == e {
		t.counterMu.Lock()
		t.live[e.Kind()]--
		t.counterMu.Unlock()
	}
}

// Snapshot returns the live entities of kind (0 for all) at a single
// instant, ordered by Serial. All shards are read-locked together so no
// entity is seen twice and none live at that instant is skipped.
func (t *Table) Snapshot(kind Kind) []Entity {
	for i := range t.shards {
		t.shards[i].mu.RLock()
	}
	n := 0
	for i := range t.shards {
		n += len(t.shards[i].m)
	}
	out := make([]Entity, 0, n)
	for i := range t.shards {
		for _, e := range t.shards[i].m {
			if kind == 0 || e.Kind() == kind {
				out = append(out, e)
			}
		}
	}
	for i := range t.shards {
		t.shards[i].mu.RUnlock()
	}
	slices.SortFunc(out, func(a, b Entity) int { return cmp.Compare(a.Serial(), b.Serial()) })
	return out
}

// Count returns the number of live entities of kind.
func (t *Table) Count(kind Kind) int {
	t.counterMu.Lock()
	defer t.counterMu.Unlock()
	return t.live[kind]
}

// Counters returns the last allocated Serial of each kind.
func (t *Table) Counters() (mobile, item Serial) {
	t.counterMu.Lock()
	defer t.counterMu.Unlock()
	return t.last[KindMobile], t.last[KindItem]
}

// SetCounters restores the allocation position saved with a snapshot.
// Values outside a kind's range are ignored.
func (t *Table) SetCounters(mobile, item Serial) {
	t.counterMu.Lock()
	defer t.counterMu.Unlock()
	if rg := t.ranges[KindMobile]; mobile >= rg[0] && mobile <= rg[1] {
		t.last[KindMobile] = mobile
	}
	if rg := t.ranges[KindItem]; item >= rg[0] && item <= rg[1] {
		t.last[KindItem] = item
	}
}
