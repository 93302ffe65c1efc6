package world

import (
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
)

const (
	soundNotify    = "notifications/alert.mp3"
	soundAdminTell = "notifications/admin_tell.mp3"
	soundChat      = "notifications/chat.mp3"
)

// seal encodes and encrypts msg once so a broadcast reuses one payload.
func (w *World) seal(msg protocol.Message) ([]byte, bool) {
	data, err := w.cipher.Seal(protocol.Marshal(msg))
	if err != nil {
		w.logger.Error("failed to seal message", "kind", msg.Kind(), "error", err)
		return nil, false
	}
	return data, true
}

func (w *World) sendConn(conn player.ConnID, msg protocol.Message) {
	data, ok := w.seal(msg)
	if !ok {
		return
	}
	if err := w.out.Send(conn, data); err != nil {
		w.logger.Debug("send failed", "conn", conn, "error", err)
	}
}

func (w *World) Send(s *player.Session, msg protocol.Message) {
	w.sendConn(s.Conn, msg)
}

func (w *World) broadcastWhere(msg protocol.Message, keep func(*player.Session) bool) {
	var data []byte
	for _, s := range w.players.GetAll() {
		if keep != nil && !keep(s) {
			continue
		}
		if data == nil {
			var ok bool
			if data, ok = w.seal(msg); !ok {
				return
			}
		}
		if err := w.out.Send(s.Conn, data); err != nil {
			w.logger.Debug("send failed", "conn", s.Conn, "error", err)
		}
	}
}

func (w *World) Broadcast(msg protocol.Message) {
	w.broadcastWhere(msg, nil)
}

func (w *World) broadcastMap(mapName string, msg protocol.Message) {
	w.broadcastWhere(msg, func(s *player.Session) bool {
		return s.Data.Map == mapName
	})
}

// Play sends a positional cue to everyone on mapName.
func (w *World) Play(sound string, x, y int, mapName string) {
	w.broadcastMap(mapName, &protocol.Play{
		Sound: sound,
		X:     protocol.Int32(x),
		Y:     protocol.Int32(y),
		Map:   mapName,
	})
}

// play emits a cue at the player's position; the player hears it too.
func (w *World) play(s *player.Session, sound string) {
	if sound == "" {
		return
	}
	w.broadcastMap(s.Data.Map, &protocol.Play{
		Sound:    sound,
		X:        protocol.Int32(s.Data.X),
		Y:        protocol.Int32(s.Data.Y),
		Who:      s.Name,
		Map:      s.Data.Map,
		SelfPlay: protocol.Bool(true),
	})
}

func (w *World) selfPlay(s *player.Session, sound string) {
	w.Send(s, &protocol.Play{
		Sound:    sound,
		Who:      s.Name,
		Map:      s.Data.Map,
		SelfPlay: protocol.Bool(true),
	})
}

func (w *World) say(s *player.Session, text string) {
	w.Send(s, &protocol.Say{Text: text})
}

func (w *World) buffer(s *player.Session, text, name, sound string) {
	w.Send(s, &protocol.Buffer{Text: text, Name: name, Sound: sound})
}

// Notify sends a notification to every player.
func (w *World) Notify(text string) {
	w.Broadcast(&protocol.Buffer{Text: text, Name: protocol.BufferNotifications, Sound: soundNotify})
}

// AdminTell sends text to every online admin.
func (w *World) AdminTell(text string) {
	w.broadcastWhere(&protocol.Buffer{
		Text:  text,
		Name:  protocol.BufferAdminAlerts,
		Sound: soundAdminTell,
	}, (*player.Session).IsAdmin)
}

func moveMessage(s *player.Session, silent bool) *protocol.Move {
	return &protocol.Move{
		X:         protocol.Int32(s.Data.X),
		Y:         protocol.Int32(s.Data.Y),
		Direction: protocol.Int32(s.Data.Direction),
		Who:       s.Name,
		Map:       s.Data.Map,
		Silent:    protocol.Bool(silent),
	}
}

// broadcastMove tells everyone else where s is now.
func (w *World) broadcastMove(s *player.Session, silent bool) {
	msg := moveMessage(s, silent)
	w.broadcastWhere(msg, func(other *player.Session) bool {
		return other.Conn != s.Conn
	})
}

// resync forces the client's own position to the server's.
func (w *World) resync(s *player.Session) {
	w.Send(s, &protocol.MoveClient{
		X:         protocol.Int32(s.Data.X),
		Y:         protocol.Int32(s.Data.Y),
		Direction: protocol.Int32(s.Data.Direction),
		Map:       s.Data.Map,
	})
}

// changeMap relocates s, sending the new map text when the map changes.
func (w *World) changeMap(s *player.Session, x, y int, mapName string) {
	if s.Data.Map != mapName {
		if grid, ok := w.grids[mapName]; ok {
			w.Send(s, &protocol.ParseMap{Data: grid.Source})
		}
	}
	s.Data.X, s.Data.Y, s.Data.Map = x, y, mapName
	s.Motion = player.OnGround
	s.Airborne = 0
	s.Safe = false
	w.resync(s)
	w.broadcastMove(s, true)
}

func (w *World) roster() []protocol.PlayerInfo {
	all := w.players.GetAll()
	infos := make([]protocol.PlayerInfo, 0, len(all))
	for _, s := range all {
		infos = append(infos, protocol.PlayerInfo{
			Name:      s.Name,
			X:         int32(s.Data.X),
			Y:         int32(s.Data.Y),
			Direction: int32(s.Data.Direction),
			Map:       s.Data.Map,
		})
	}
	return infos
}
