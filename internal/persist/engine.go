// Package persist saves the world to a versioned binary snapshot and loads
// it back.
//
// A snapshot lives under <dir>/Saves:
//
//	World.hdr                    format, save time, serial counters, counts
//	Mobiles/Mobiles.tdb|idx|bin  type tags, per-entity index, payload body
//	Items/Items.tdb|idx|bin
//	Participants/<name>.bin      subsystem state (accounts, ...)
//
// Saves are written to Saves.tmp and renamed into place only once complete;
// the replaced snapshot moves to Backups/<timestamp>.
package persist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/runeshard/server/internal/config"
	"github.com/runeshard/server/internal/world"
	"go.uber.org/zap"
)

// Engine saves and loads one World.
type Engine struct {
	w    *world.World
	cfg  config.PersistenceConfig
	log  *zap.Logger
	now  func() time.Time
	mu   sync.Mutex // one save or load at a time
	rec  Recorder
	cat  *Catalog
	last SaveInfo

	parts    []Participant
	onSaved  []func(SaveInfo)
	onLoaded []func(LoadInfo)
}

func NewEngine(w *world.World, cfg config.PersistenceConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{w: w, cfg: cfg, log: log, now: time.Now}
}

// SetCatalog makes every committed save write a row to cat.
func (e *Engine) SetCatalog(cat *Catalog) { e.cat = cat }

func (e *Engine) SetRecorder(rec Recorder) { e.rec = rec }

// AddParticipant registers subsystem state to save and load with the world.
// Names must be unique and usable as file names.
func (e *Engine) AddParticipant(p Participant) error {
	if err := validParticipantName(p.Name()); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, q := range e.parts {
		if q.Name() == p.Name() {
			return fmt.Errorf("persist: participant %q already registered", p.Name())
		}
	}
	e.parts = append(e.parts, p)
	return nil
}

// OnSaved registers fn to run after every committed save.
func (e *Engine) OnSaved(fn func(SaveInfo)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSaved = append(e.onSaved, fn)
}

// OnLoaded registers fn to run after a load completes.
func (e *Engine) OnLoaded(fn func(LoadInfo)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLoaded = append(e.onLoaded, fn)
}

// SavesPath is the directory of the current snapshot.
func (e *Engine) SavesPath() string { return filepath.Join(e.cfg.Dir, savesDir) }

// LastSave returns the most recent save committed by this engine.
func (e *Engine) LastSave() SaveInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Save writes a snapshot of every live entity and participant.
//
// The caller must keep the world still for the duration of the in-memory
// walk; the tick loop does this by saving from its own goroutine. On error
// the previous snapshot is left in place.
func (e *Engine) Save(ctx context.Context) (SaveInfo, error) {
	e.mu.Lock()
	start := e.now()
	info, err := e.save(ctx, start)
	info.Duration = e.now().Sub(start)
	if err == nil {
		e.last = info
	}
	hooks := e.onSaved
	e.mu.Unlock()

	if e.rec != nil {
		e.rec.RecordSave(info.Duration, info.Mobiles+info.Items, err)
	}
	if err != nil {
		e.log.Error("world save failed", zap.Error(err), zap.Duration("elapsed", info.Duration))
		return info, err
	}
	e.log.Info("world saved",
		zap.Int("mobiles", info.Mobiles),
		zap.Int("items", info.Items),
		zap.Int64("bytes", info.Bytes),
		zap.Duration("elapsed", info.Duration))

	if e.cat != nil {
		rec := SaveRecord{
			SavedAt:  info.SavedAt,
			Path:     info.Path,
			Format:   FormatVersion,
			Mobiles:  info.Mobiles,
			Items:    info.Items,
			Bytes:    info.Bytes,
			Checksum: info.Checksum,
			Duration: info.Duration,
		}
		if err := e.cat.Record(ctx, rec); err != nil {
			e.log.Warn("save catalog", zap.Error(err))
		}
	}
	for _, fn := range hooks {
		e.safeHook("saved", func() { fn(info) })
	}
	return info, nil
}

func (e *Engine) save(ctx context.Context, start time.Time) (SaveInfo, error) {
	info := SaveInfo{Path: e.SavesPath(), SavedAt: start.UTC()}

	snaps := map[world.Kind][]world.Entity{
		world.KindMobile: e.w.Snapshot(world.KindMobile),
		world.KindItem:   e.w.Snapshot(world.KindItem),
	}
	mc, ic := e.w.Table().Counters()
	info.Mobiles = len(snaps[world.KindMobile])
	info.Items = len(snaps[world.KindItem])

	kinds, err := serializeAll(ctx, snaps, e.cfg.Parallel)
	if err != nil {
		return info, err
	}

	hdr := Header{
		Format:        FormatVersion,
		SavedAt:       info.SavedAt,
		MobileCounter: mc,
		ItemCounter:   ic,
		Mobiles:       info.Mobiles,
		Items:         info.Items,
	}
	var files []file
	for _, kd := range kinds {
		name := kd.set.name
		bin, err := encodeData(dataMagic, kd.body, e.cfg.Compress)
		if err != nil {
			return info, err
		}
		files = append(files,
			file{filepath.Join(name, name+".tdb"), encodeTypes(kd.tags)},
			file{filepath.Join(name, name+".idx"), encodeIndex(kd.index)},
			file{filepath.Join(name, name+".bin"), bin},
		)
	}
	for _, p := range e.parts {
		w := world.NewWriter()
		if err := safeParticipantSerialize(p, w); err != nil {
			return info, err
		}
		bin, err := encodeData(partMagic, w.Bytes(), e.cfg.Compress)
		if err != nil {
			return info, err
		}
		hdr.Participants = append(hdr.Participants, p.Name())
		files = append(files, file{filepath.Join(partsDir, p.Name()+".bin"), bin})
	}
	files = append(files, file{headerFile, encodeHeader(hdr)})

	info.Checksum, info.Bytes = checksum(files)

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return info, fmt.Errorf("create save dir: %w", err)
	}
	c := &committer{
		root:     e.cfg.Dir,
		backups:  e.cfg.Backups,
		attempts: e.cfg.RetryAttempts,
		base:     max(e.cfg.RetryBase, time.Millisecond),
		log:      e.log,
		now:      e.now,
	}
	if err := c.commit(ctx, files); err != nil {
		return info, fmt.Errorf("commit snapshot: %w", err)
	}
	return info, nil
}

// loadedKind is one family read from disk with its skeletons built.
type loadedKind struct {
	set   kindSet
	tags  []string
	index []record
	body  []byte
	ents  []world.Entity // parallel to index; nil where the record was skipped
}

// Load rebuilds the world from the current snapshot. A missing snapshot
// yields an empty world. Version errors, unknown types (unless dropping is
// configured) and structural damage are fatal and leave the world partially
// populated; the caller must not run it.
func (e *Engine) Load(ctx context.Context) (LoadInfo, error) {
	e.mu.Lock()
	start := e.now()
	info, err := e.load(ctx)
	info.Duration = e.now().Sub(start)
	hooks := e.onLoaded
	e.mu.Unlock()

	if err != nil {
		e.log.Error("world load failed", zap.Error(err))
		return info, err
	}
	if e.rec != nil {
		e.rec.RecordLoad(info.Duration, info.Dropped)
	}
	e.log.Info("world loaded",
		zap.Bool("empty", info.Empty),
		zap.Int("mobiles", info.Mobiles),
		zap.Int("items", info.Items),
		zap.Int("dropped", info.Dropped),
		zap.Duration("elapsed", info.Duration))
	for _, fn := range hooks {
		e.safeHook("loaded", func() { fn(info) })
	}
	return info, nil
}

func (e *Engine) load(ctx context.Context) (LoadInfo, error) {
	info := LoadInfo{Path: e.SavesPath()}
	if err := recoverInterrupted(e.cfg.Dir, e.log); err != nil {
		return info, fmt.Errorf("recover interrupted save: %w", err)
	}
	raw, err := os.ReadFile(filepath.Join(info.Path, headerFile))
	if errors.Is(err, fs.ErrNotExist) {
		info.Empty = true
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("read world header: %w", err)
	}
	hdr, err := decodeHeader(raw)
	if err != nil {
		return info, err
	}
	info.SavedAt = hdr.SavedAt

	kinds := make([]*loadedKind, 0, len(kindSets))
	for _, set := range kindSets {
		lk, err := e.readKind(info.Path, set)
		if err != nil {
			return info, err
		}
		kinds = append(kinds, lk)
	}

	// Every skeleton is registered before any record is read, so forward
	// references resolve.
	for _, lk := range kinds {
		skipped, err := e.buildSkeletons(lk)
		info.Dropped += skipped
		if err != nil {
			return info, err
		}
	}

	for _, lk := range kinds {
		if err := ctx.Err(); err != nil {
			return info, err
		}
		dropped, err := e.deserializeKind(lk)
		info.Dropped += dropped
		if err != nil {
			return info, err
		}
	}

	if err := e.loadParticipants(info.Path, hdr); err != nil {
		return info, err
	}

	e.w.Table().SetCounters(hdr.MobileCounter, hdr.ItemCounter)

	for _, lk := range kinds {
		for _, ent := range lk.ents {
			if ent != nil && !ent.Deleted() {
				e.w.Place(ent)
			}
		}
	}
	info.Mobiles = e.w.Count(world.KindMobile)
	info.Items = e.w.Count(world.KindItem)
	return info, nil
}

func (e *Engine) readKind(root string, set kindSet) (*loadedKind, error) {
	dir := filepath.Join(root, set.name)
	read := func(ext string) ([]byte, error) {
		b, err := os.ReadFile(filepath.Join(dir, set.name+ext))
		if err != nil {
			return nil, fmt.Errorf("%w: %s%s: %v", ErrCorrupt, set.name, ext, err)
		}
		return b, nil
	}
	tdb, err := read(".tdb")
	if err != nil {
		return nil, err
	}
	idx, err := read(".idx")
	if err != nil {
		return nil, err
	}
	bin, err := read(".bin")
	if err != nil {
		return nil, err
	}

	lk := &loadedKind{set: set}
	if lk.tags, err = decodeTypes(tdb); err != nil {
		return nil, err
	}
	if lk.body, err = decodeData(dataMagic, bin, set.name+".bin"); err != nil {
		return nil, err
	}
	if lk.index, err = decodeIndex(idx, set.kind, len(lk.tags), int64(len(lk.body))); err != nil {
		return nil, err
	}
	return lk, nil
}

func (e *Engine) buildSkeletons(lk *loadedKind) (skipped int, err error) {
	types := e.w.Types()
	lk.ents = make([]world.Entity, len(lk.index))
	for i, rec := range lk.index {
		tag := lk.tags[rec.typeIndex]
		ent, err := types.Construct(tag, rec.serial)
		if err != nil {
			if errors.Is(err, world.ErrUnknownType) && e.cfg.DropUnknownTypes {
				e.log.Warn("dropping entity of unknown type",
					zap.Int32("serial", int32(rec.serial)),
					zap.String("type", tag))
				skipped++
				continue
			}
			return skipped, fmt.Errorf("%s %s: %w", lk.set.name, rec.serial, err)
		}
		if err := e.w.Register(ent); err != nil {
			return skipped, fmt.Errorf("%w: register %s %s: %v", ErrCorrupt, tag, rec.serial, err)
		}
		lk.ents[i] = ent
	}
	return skipped, nil
}

// deserializeKind reads each record from its exact byte range. A record
// that fails to read, or leaves bytes unread, drops its entity. A version
// error aborts the load.
func (e *Engine) deserializeKind(lk *loadedKind) (dropped int, err error) {
	for i, ent := range lk.ents {
		if ent == nil {
			continue
		}
		rec := lk.index[i]
		payload := lk.body[rec.offset : rec.offset+int64(rec.length)]
		r := world.NewReader(payload, e.w)
		derr := safeDeserialize(ent, r)
		if derr == nil {
			derr = r.Err()
		}
		if derr == nil && r.Remaining() != 0 {
			derr = fmt.Errorf("%d bytes left unread", r.Remaining())
		}
		if derr == nil {
			continue
		}
		var ve *world.VersionError
		if errors.As(derr, &ve) {
			return dropped, fmt.Errorf("%s %s: %w", lk.set.name, rec.serial, derr)
		}
		e.log.Warn("dropping entity that failed to load",
			zap.Int32("serial", int32(rec.serial)),
			zap.String("type", lk.tags[rec.typeIndex]),
			zap.Error(derr))
		e.w.Discard(ent)
		lk.ents[i] = nil
		dropped++
	}
	return dropped, nil
}

func safeDeserialize(ent world.Entity, r *world.Reader) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return ent.Deserialize(r)
}

// loadParticipants feeds each registered participant its saved state.
// Participants with no saved file keep their initial state; saved state
// with no registered participant is ignored with a warning.
func (e *Engine) loadParticipants(root string, hdr Header) error {
	saved := make(map[string]bool, len(hdr.Participants))
	for _, name := range hdr.Participants {
		saved[name] = true
	}
	for _, p := range e.parts {
		if !saved[p.Name()] {
			e.log.Info("participant has no saved state", zap.String("participant", p.Name()))
			continue
		}
		delete(saved, p.Name())
		what := p.Name() + ".bin"
		raw, err := os.ReadFile(filepath.Join(root, partsDir, what))
		if err != nil {
			return fmt.Errorf("%w: participant %s: %v", ErrCorrupt, p.Name(), err)
		}
		body, err := decodeData(partMagic, raw, what)
		if err != nil {
			return err
		}
		r := world.NewReader(body, e.w)
		if err := safeParticipantDeserialize(p, r); err != nil {
			return fmt.Errorf("participant %s: %w", p.Name(), err)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("%w: participant %s: %v", ErrCorrupt, p.Name(), err)
		}
	}
	for name := range saved {
		e.log.Warn("saved participant not registered; its state is ignored", zap.String("participant", name))
	}
	return nil
}

func (e *Engine) safeHook(which string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("persistence hook panic recovered",
				zap.String("hook", which),
				zap.Any("panic", rec))
		}
	}()
	fn()
}
