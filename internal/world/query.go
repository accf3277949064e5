package world

import (
	"iter"
	"sync"

	"github.com/runeshard/server/internal/geo"
)

// Filter selects which entity kinds a query yields.
type Filter uint8

const (
	Mobiles Filter = 1 << iota
	Items
	All = Mobiles | Items
)

const maxPooledResults = 4096

var resultBufPool = sync.Pool{
	New: func() any {
		b := make([]Entity, 0, 64)
		return &b
	},
}

// Results is a lazy, single-pass sequence of entities within range of a
// point. Sectors are scanned one at a time under the map's read lock; the
// lock is not held between calls to Next. Callers must Close the results,
// normally with defer, to return the buffer to the pool.
//
// Entities relocated between sectors while a scan is in progress may be
// seen twice or not at all.
type Results struct {
	m      *Map
	center geo.Point3D
	rng    int
	filter Filter

	sx0, sx1, sy1 int
	cx, cy        int

	buf  *[]Entity
	pos  int
	done bool
}

// Query returns the entities whose X/Y lies within Euclidean distance rng of
// center. Nil, Internal and out-of-bounds queries yield nothing.
func (m *Map) Query(center geo.Point3D, rng int, filter Filter) *Results {
	r := &Results{m: m, center: center, rng: rng, filter: filter}
	if m == nil || m == Internal || m.cols == 0 || rng < 0 || filter&All == 0 {
		r.done = true
		return r
	}
	m.queries.Add(1)

	x0, y0 := max(center.X-rng, 0), max(center.Y-rng, 0)
	x1, y1 := min(center.X+rng, m.width-1), min(center.Y+rng, m.height-1)
	if x0 > x1 || y0 > y1 {
		r.done = true
		return r
	}
	r.sx0, r.cy = x0>>m.shift, y0>>m.shift
	r.sx1, r.sy1 = x1>>m.shift, y1>>m.shift
	r.cx = r.sx0
	r.buf = resultBufPool.Get().(*[]Entity)
	return r
}

// Next returns the next entity, or false once the sequence is exhausted or
// closed.
func (r *Results) Next() (Entity, bool) {
	for !r.done {
		b := *r.buf
		if r.pos < len(b) {
			e := b[r.pos]
			b[r.pos] = nil
			r.pos++
			return e, true
		}
		if !r.fill() {
			r.done = true
		}
	}
	return nil, false
}

// All adapts the results for range loops. Breaking out of the loop leaves
// the remaining entities unread; Close is still required.
func (r *Results) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for {
			e, ok := r.Next()
			if !ok || !yield(e) {
				return
			}
		}
	}
}

// Close releases the pooled buffer. It is safe to call more than once.
func (r *Results) Close() {
	r.done = true
	if r.buf == nil {
		return
	}
	b := *r.buf
	clear(b[:cap(b)])
	if cap(b) <= maxPooledResults {
		*r.buf = b[:0]
		resultBufPool.Put(r.buf)
	}
	r.buf = nil
}

// fill scans sectors until one contributes a match or none remain.
func (r *Results) fill() bool {
	b := (*r.buf)[:0]
	r.pos = 0

	m := r.m
	m.mu.RLock()
	for len(b) == 0 && r.cy <= r.sy1 {
		s := m.sectorAt(r.cx, r.cy, false)
		if r.cx++; r.cx > r.sx1 {
			r.cx = r.sx0
			r.cy++
		}
		if s == nil {
			continue
		}
		if r.filter&Mobiles != 0 {
			b = r.appendInRange(b, s.mobiles)
		}
		if r.filter&Items != 0 {
			b = r.appendInRange(b, s.items)
		}
	}
	m.mu.RUnlock()

	*r.buf = b
	return len(b) > 0
}

func (r *Results) appendInRange(b, list []Entity) []Entity {
	for _, e := range list {
		if e.core().loc.InRange(r.center, r.rng) {
			b = append(b, e)
		}
	}
	return b
}

// Collect drains r into a new slice and closes it.
func Collect(r *Results) []Entity {
	defer r.Close()
	var out []Entity
	for e := range r.All() {
		out = append(out, e)
	}
	return out
}
