package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/runeshard/server/internal/persist"
	"github.com/runeshard/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Hook names scripts may define as globals.
const (
	HookWorldLoad = "on_world_load"
	HookWorldSave = "on_world_save"
)

// Engine wraps a single gopher-lua VM for shard scripts. Calls are
// serialized; persistence hooks may arrive from the shutdown goroutine.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	w       *world.World
	deleter Deleter
	log     *zap.Logger
}

// Deleter queues an entity for deletion on the tick goroutine.
// system.CleanupSystem implements it.
type Deleter interface {
	Defer(e world.Entity)
}

// SetDeleter enables world.delete for scripts.
func (e *Engine) SetDeleter(d Deleter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleter = d
}

// NewEngine creates a Lua engine bound to w and loads every script in dir.
// A missing dir yields an engine with no scripts.
func NewEngine(dir string, w *world.World, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, w: w, log: log}
	e.registerWorldAPI()

	if err := e.loadDir(dir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Close releases the VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// Attach registers the save and load hooks on p.
func (e *Engine) Attach(p *persist.Engine) {
	p.OnSaved(func(info persist.SaveInfo) {
		e.CallHook(HookWorldSave, map[string]lua.LValue{
			"path":     lua.LString(info.Path),
			"saved_at": lua.LNumber(info.SavedAt.Unix()),
			"mobiles":  lua.LNumber(info.Mobiles),
			"items":    lua.LNumber(info.Items),
			"bytes":    lua.LNumber(info.Bytes),
			"checksum": lua.LString(info.Checksum),
			"duration": lua.LNumber(info.Duration.Seconds()),
		})
	})
	p.OnLoaded(func(info persist.LoadInfo) {
		e.CallHook(HookWorldLoad, map[string]lua.LValue{
			"path":     lua.LString(info.Path),
			"mobiles":  lua.LNumber(info.Mobiles),
			"items":    lua.LNumber(info.Items),
			"dropped":  lua.LNumber(info.Dropped),
			"empty":    lua.LBool(info.Empty),
			"duration": lua.LNumber(info.Duration.Seconds()),
		})
	})
}

// CallHook calls the global function name with a table of fields when
// scripts define it. It reports whether the hook ran without error.
func (e *Engine) CallHook(name string, fields map[string]lua.LValue) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return false
	}
	t := e.vm.NewTable()
	for k, v := range fields {
		t.RawSetString(k, v)
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua hook error", zap.String("hook", name), zap.Error(err))
		return false
	}
	return true
}

// global reads a script global under the VM lock.
func (e *Engine) global(name string) lua.LValue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal(name)
}
