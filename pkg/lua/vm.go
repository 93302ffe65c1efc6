package lua

import (
	"fmt"

	"github.com/Shopify/go-lua"
)

// Globals stripped from every script VM. Scripts reach the game only
// through the registered API.
var unsafeGlobals = []string{"io", "os", "debug", "dofile", "loadfile", "load", "require", "package"}

// VM is a single sandboxed Lua state. Each command script gets its own, so
// scripts cannot see each other's globals.
type VM struct {
	state  *lua.State
	source string
}

func NewVM() *VM {
	state := lua.NewState()
	lua.OpenLibraries(state)
	for _, name := range unsafeGlobals {
		state.PushNil()
		state.SetGlobal(name)
	}
	return &VM{state: state, source: "<string>"}
}

func (vm *VM) LoadFile(path string) error {
	vm.source = path
	if err := lua.DoFile(vm.state, path); err != nil {
		return fmt.Errorf("failed to load lua file %s: %w", path, err)
	}
	return nil
}

func (vm *VM) LoadString(code string) error {
	if err := lua.DoString(vm.state, code); err != nil {
		return fmt.Errorf("failed to load lua string: %w", err)
	}
	return nil
}

// StringGlobal returns the global name if it holds a string.
func (vm *VM) StringGlobal(name string) (string, bool) {
	vm.state.Global(name)
	defer vm.state.Pop(1)
	if vm.state.TypeOf(-1) != lua.TypeString {
		return "", false
	}
	return vm.state.ToString(-1)
}

func (vm *VM) HasFunction(name string) bool {
	vm.state.Global(name)
	isFunc := vm.state.IsFunction(-1)
	vm.state.Pop(1)
	return isFunc
}

func (vm *VM) RegisterFunction(name string, fn lua.Function) {
	vm.state.Register(name, fn)
}

// CallHandler runs handler(caller, args). args[0] carries the name the
// command was invoked under. A string result is returned; anything else
// yields "".
func (vm *VM) CallHandler(handler string, caller Caller, invokedAs string, args []string) (string, error) {
	state := vm.state
	state.Global(handler)
	if !state.IsFunction(-1) {
		state.Pop(1)
		return "", fmt.Errorf("%s: handler %s is not a function", vm.source, handler)
	}

	PushCaller(state, caller)

	state.NewTable()
	state.PushString(invokedAs)
	state.RawSetInt(-2, 0)
	for i, arg := range args {
		state.PushString(arg)
		state.RawSetInt(-2, i+1)
	}

	if err := state.ProtectedCall(2, 1, 0); err != nil {
		return "", fmt.Errorf("%s: %w", vm.source, err)
	}
	defer state.Pop(1)

	if state.TypeOf(-1) != lua.TypeString {
		return "", nil
	}
	result, _ := state.ToString(-1)
	return result, nil
}
