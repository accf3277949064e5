package scripting

import (
	"github.com/runeshard/server/internal/world"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// registerWorldAPI installs the `world` table:
//
//	world.count([kind])   kind is "mobile", "item" or nil for both
//	world.find(serial)    table describing the entity, or nil
//	world.delete(serial)  queues the entity for deletion at tick end
//	world.log(msg)        writes msg to the server log
func (e *Engine) registerWorldAPI() {
	t := e.vm.NewTable()
	t.RawSetString("count", e.vm.NewFunction(e.luaCount))
	t.RawSetString("find", e.vm.NewFunction(e.luaFind))
	t.RawSetString("delete", e.vm.NewFunction(e.luaDelete))
	t.RawSetString("log", e.vm.NewFunction(e.luaLog))
	e.vm.SetGlobal("world", t)
}

func (e *Engine) luaCount(L *lua.LState) int {
	var kind world.Kind
	switch s := L.OptString(1, ""); s {
	case "":
	case "mobile":
		kind = world.KindMobile
	case "item":
		kind = world.KindItem
	default:
		L.ArgError(1, "kind must be \"mobile\" or \"item\"")
		return 0
	}
	if e.w == nil {
		L.Push(lua.LNumber(0))
		return 1
	}
	if kind == 0 {
		L.Push(lua.LNumber(e.w.Count(world.KindMobile) + e.w.Count(world.KindItem)))
		return 1
	}
	L.Push(lua.LNumber(e.w.Count(kind)))
	return 1
}

func (e *Engine) luaFind(L *lua.LState) int {
	s := world.Serial(L.CheckInt(1))
	var ent world.Entity
	if e.w != nil {
		ent = e.w.FindEntity(s)
	}
	if ent == nil || ent.Deleted() {
		L.Push(lua.LNil)
		return 1
	}

	p := ent.Location()
	t := L.NewTable()
	t.RawSetString("serial", lua.LNumber(ent.Serial()))
	t.RawSetString("kind", lua.LString(ent.Kind().String()))
	t.RawSetString("type", lua.LString(ent.TypeTag()))
	t.RawSetString("x", lua.LNumber(p.X))
	t.RawSetString("y", lua.LNumber(p.Y))
	t.RawSetString("z", lua.LNumber(p.Z))
	if m := ent.Map(); m != nil {
		t.RawSetString("map", lua.LString(m.Name()))
	}
	L.Push(t)
	return 1
}

func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// luaDelete returns true when the entity was queued.
func (e *Engine) luaDelete(L *lua.LState) int {
	s := world.Serial(L.CheckInt(1))
	if e.deleter == nil || e.w == nil {
		L.RaiseError("world.delete is not available")
		return 0
	}
	ent := e.w.FindEntity(s)
	if ent == nil || ent.Deleted() {
		L.Push(lua.LFalse)
		return 1
	}
	e.deleter.Defer(ent)
	L.Push(lua.LTrue)
	return 1
}
