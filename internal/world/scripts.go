package world

import (
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/pkg/lua"
)

// scriptHost exposes the world to scripted commands. Scripts run inside
// Dispatch, on the tick loop.
type scriptHost struct {
	w *World
}

func (h scriptHost) Say(name, text string) bool {
	s, ok := h.w.players.GetByName(name)
	if !ok {
		return false
	}
	h.w.say(s, text)
	return true
}

func (h scriptHost) Notify(text string) {
	h.w.Notify(text)
}

func (h scriptHost) PlayerPosition(name string) (int, int, string, bool) {
	s, ok := h.w.players.GetByName(name)
	if !ok {
		return 0, 0, "", false
	}
	x, y, mapName := s.Position()
	return x, y, mapName, true
}

func (h scriptHost) OnlineNames() []string {
	return h.w.players.Names()
}

func (h scriptHost) IsAdmin(name string) bool {
	s, ok := h.w.players.GetByName(name)
	return ok && s.IsAdmin()
}

func (w *World) caller(s *player.Session) lua.Caller {
	return lua.Caller{
		Name:   s.Name,
		X:      s.Data.X,
		Y:      s.Data.Y,
		Map:    s.Data.Map,
		Admin:  s.Data.Admin,
		Dev:    s.Data.Dev,
		Health: s.Data.Health,
		Kills:  s.Data.Kills,
		Deaths: s.Data.Deaths,
	}
}
