package lua

import (
	"github.com/Shopify/go-lua"
)

// Host is the slice of the game world that scripts may touch. Players are
// addressed by account name.
type Host interface {
	Say(name, text string) bool
	Notify(text string)
	PlayerPosition(name string) (x, y int, mapName string, ok bool)
	OnlineNames() []string
	IsAdmin(name string) bool
}

// Caller describes the player running a scripted command.
type Caller struct {
	Name   string
	X      int
	Y      int
	Map    string
	Admin  bool
	Dev    bool
	Health int
	Kills  int
	Deaths int
}

type GameAPI struct {
	host Host
}

func NewGameAPI(host Host) *GameAPI {
	return &GameAPI{host: host}
}

func (api *GameAPI) RegisterFunctions(vm *VM) {
	vm.RegisterFunction("say", api.say)
	vm.RegisterFunction("notify", api.notify)
	vm.RegisterFunction("player_position", api.playerPosition)
	vm.RegisterFunction("online_count", api.onlineCount)
	vm.RegisterFunction("online_players", api.onlinePlayers)
	vm.RegisterFunction("is_admin", api.isAdmin)
}

func (api *GameAPI) say(state *lua.State) int {
	name, _ := state.ToString(1)
	text, _ := state.ToString(2)

	state.PushBoolean(api.host.Say(name, text))
	return 1
}

func (api *GameAPI) notify(state *lua.State) int {
	text, _ := state.ToString(1)
	if text != "" {
		api.host.Notify(text)
	}
	return 0
}

func (api *GameAPI) playerPosition(state *lua.State) int {
	name, _ := state.ToString(1)

	x, y, mapName, ok := api.host.PlayerPosition(name)
	if !ok {
		state.PushNil()
		return 1
	}

	state.PushInteger(x)
	state.PushInteger(y)
	state.PushString(mapName)
	return 3
}

func (api *GameAPI) onlineCount(state *lua.State) int {
	state.PushInteger(len(api.host.OnlineNames()))
	return 1
}

func (api *GameAPI) onlinePlayers(state *lua.State) int {
	state.NewTable()
	for i, name := range api.host.OnlineNames() {
		state.PushString(name)
		state.RawSetInt(-2, i+1)
	}
	return 1
}

func (api *GameAPI) isAdmin(state *lua.State) int {
	name, _ := state.ToString(1)
	state.PushBoolean(api.host.IsAdmin(name))
	return 1
}

// PushCaller leaves a table describing c on top of the stack.
func PushCaller(state *lua.State, c Caller) {
	state.NewTable()
	state.PushString(c.Name)
	state.SetField(-2, "name")
	state.PushInteger(c.X)
	state.SetField(-2, "x")
	state.PushInteger(c.Y)
	state.SetField(-2, "y")
	state.PushString(c.Map)
	state.SetField(-2, "map")
	state.PushBoolean(c.Admin)
	state.SetField(-2, "admin")
	state.PushBoolean(c.Dev)
	state.SetField(-2, "dev")
	state.PushInteger(c.Health)
	state.SetField(-2, "health")
	state.PushInteger(c.Kills)
	state.SetField(-2, "kills")
	state.PushInteger(c.Deaths)
	state.SetField(-2, "deaths")
}
