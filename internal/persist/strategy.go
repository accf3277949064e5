package persist

import (
	"context"
	"fmt"

	"github.com/runeshard/server/internal/world"
	"golang.org/x/sync/errgroup"
)

// kindSet names the directory and file stem of one entity family.
type kindSet struct {
	kind world.Kind
	name string
}

var kindSets = []kindSet{
	{world.KindMobile, "Mobiles"},
	{world.KindItem, "Items"},
}

// kindData is one family serialized into memory, ready to be framed.
type kindData struct {
	set   kindSet
	tags  []string
	index []record
	body  []byte
}

// serializeKind writes every entity's payload back to back into one body
// and records the byte range of each.
func serializeKind(set kindSet, entities []world.Entity) (kindData, error) {
	kd := kindData{set: set, index: make([]record, 0, len(entities))}
	tagIndex := make(map[string]int)
	w := world.NewWriter()
	for _, e := range entities {
		tag := e.TypeTag()
		ti, ok := tagIndex[tag]
		if !ok {
			ti = len(kd.tags)
			tagIndex[tag] = ti
			kd.tags = append(kd.tags, tag)
		}
		start := w.Len()
		if err := safeSerialize(e, w); err != nil {
			return kd, err
		}
		kd.index = append(kd.index, record{
			typeIndex: ti,
			serial:    e.Serial(),
			offset:    int64(start),
			length:    int32(w.Len() - start),
		})
	}
	kd.body = w.Bytes()
	return kd, nil
}

// safeSerialize turns a panicking Serialize into an error. A broken writer
// aborts the whole save; nothing is committed.
func safeSerialize(e world.Entity, w *world.Writer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("serialize %s %s: panic: %v", e.TypeTag(), e.Serial(), rec)
		}
	}()
	e.Serialize(w)
	return nil
}

// serializeAll serializes each family, concurrently when parallel is set.
// Entities are only read here; the caller holds the world still.
func serializeAll(ctx context.Context, snaps map[world.Kind][]world.Entity, parallel bool) ([]kindData, error) {
	out := make([]kindData, len(kindSets))
	if !parallel {
		for i, set := range kindSets {
			kd, err := serializeKind(set, snaps[set.kind])
			if err != nil {
				return nil, err
			}
			out[i] = kd
		}
		return out, nil
	}

	g, _ := errgroup.WithContext(ctx)
	for i, set := range kindSets {
		g.Go(func() error {
			kd, err := serializeKind(set, snaps[set.kind])
			if err != nil {
				return err
			}
			out[i] = kd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
