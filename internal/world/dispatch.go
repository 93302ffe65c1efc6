package world

import (
	"fmt"
	"strings"
	"time"

	"github.com/siohaza/coas/internal/physics"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/timefmt"
	"github.com/siohaza/coas/internal/validation"
)

const (
	itemHealthPotion = "health_potion"
	soundPotion      = "player/potion.mp3"
)

const rulesPrompt = "You haven't agreed to the game rules yet. Please read the rules by typing /rules, And accept them by typing /agree, Otherwise, Please delete the game"

// Dispatch applies one decoded message from conn. Unknown variants and
// messages that need a session are ignored for guests. The returned error
// is non-nil only for persistence failures and shutdown requests.
func (w *World) Dispatch(conn player.ConnID, msg protocol.Message) error {
	s, ok := w.players.Get(conn)
	if !ok {
		return w.dispatchGuest(conn, msg)
	}

	switch m := msg.(type) {
	case *protocol.Ping:
		w.Send(s, &protocol.Pong{})
	case *protocol.Connect:
		w.Send(s, &protocol.Connect{})
	case *protocol.ServerStats:
		w.Send(s, w.serverStats())
	case *protocol.ServerNote:
		w.Send(s, w.serverNote())
	case *protocol.Close:
		return w.handleClose(s)
	case *protocol.Move:
		w.handleMove(s, m)
	case *protocol.Jump:
		w.handleJump(s)
	case *protocol.Teleport:
		w.handleTeleport(s)
	case *protocol.Play:
		w.handlePlay(s, m)
	case *protocol.Draw:
		w.draw(s, m.Weapon)
	case *protocol.Fire:
		w.fire(s)
	case *protocol.FireStop:
		w.stopFire(s)
	case *protocol.Reload:
		w.reload(s)
	case *protocol.Ammo:
		w.handleAmmo(s)
	case *protocol.Health:
		w.say(s, fmt.Sprintf("%dHP", s.Data.Health))
	case *protocol.UseItem:
		w.useItem(s)
	case *protocol.Cycle:
		w.cycle(s, int(m.Direction))
	case *protocol.Chat:
		return w.handleChat(s, m.Message)
	case *protocol.Who:
		w.Send(s, &protocol.Buffer{Text: w.whoText()})
	}
	return nil
}

func (w *World) dispatchGuest(conn player.ConnID, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.Login:
		if _, err := w.Authenticate(conn, m); err != nil {
			if isFatal(err) {
				return err
			}
			return w.reject(conn, err)
		}
	case *protocol.Create:
		if err := w.CreateAccount(conn, m); err != nil {
			return w.reject(conn, err)
		}
	case *protocol.Ping:
		w.sendConn(conn, &protocol.Pong{})
	case *protocol.Connect:
		w.sendConn(conn, &protocol.Connect{})
	case *protocol.ServerStats:
		w.sendConn(conn, w.serverStats())
	case *protocol.ServerNote:
		w.sendConn(conn, w.serverNote())
	}
	return nil
}

func (w *World) serverStats() *protocol.Buffer {
	return &protocol.Buffer{Text: fmt.Sprintf("Server version %s, Up for %s, Peak: %d",
		w.cfg.Server.Version, timefmt.Format(w.Uptime()), w.peak)}
}

func (w *World) serverNote() *protocol.Buffer {
	if w.note == "" {
		return &protocol.Buffer{Text: "No server note at the moment"}
	}
	return &protocol.Buffer{Text: "Server note: " + w.note}
}

func (w *World) whoText() string {
	all := w.players.GetAll()
	if len(all) <= 1 {
		return "You are alone!"
	}
	entries := make([]string, len(all))
	for i, s := range all {
		entries[i] = fmt.Sprintf("%s, %d kills, %d deaths", s.Name, s.Data.Kills, s.Data.Deaths)
	}
	return fmt.Sprintf("There are currently %d players online: %s", len(all), strings.Join(entries, ", "))
}

// handleClose ends a session at the client's request. Leaving while the
// recently hit flag is up earns a temporary ban.
func (w *World) handleClose(s *player.Session) error {
	if s.GotHit {
		duration := w.cfg.Gameplay.Millis(w.cfg.Gameplay.CheatBanDuration)
		w.bans.AddTemporary(s.Name, s.Data.ID, "", duration, w.now())
		w.Notify(fmt.Sprintf("%s Have been detected to cheat and is banned for %s", s.Name, timefmt.Format(duration)))
		w.logger.Info("combat logging ban", "name", s.Name, "duration", duration)
		if err := w.saveServer(); err != nil {
			return err
		}
	}
	err := w.leave(s)
	w.out.Disconnect(s.Conn)
	return err
}

// handleMove accepts either a facing change or a single tile step. Anything
// else puts the client back where the server has it.
func (w *World) handleMove(s *player.Session, m *protocol.Move) {
	grid, ok := w.grids[s.Data.Map]
	if !ok {
		return
	}

	x, y := s.Data.X, s.Data.Y
	if m.X != nil {
		x = int(*m.X)
	}
	if m.Y != nil {
		y = int(*m.Y)
	}

	if m.Direction != nil {
		dir := int(*m.Direction)
		if !validation.IsValidFacing(dir) {
			w.resync(s)
			return
		}
		if x == s.Data.X && y == s.Data.Y {
			if dir != s.Data.Direction {
				s.Data.Direction = dir
				w.broadcastMove(s, true)
			}
			return
		}
	}

	if !validation.IsSingleStep(s.Data.X, s.Data.Y, x, y) {
		w.resync(s)
		return
	}

	out, moved := physics.Step(s, grid, stepDirection(s.Data.X, s.Data.Y, x, y), w.rng)
	if !moved {
		for _, sound := range out.Sounds {
			w.play(s, sound)
		}
		w.resync(s)
		return
	}

	if m.Direction != nil {
		s.Data.Direction = int(*m.Direction)
	}
	silent := m.Silent != nil && *m.Silent
	w.broadcastMove(s, silent)
	if !silent {
		for _, sound := range out.Sounds {
			w.play(s, sound)
		}
	}
}

func stepDirection(x1, y1, x2, y2 int) int {
	switch {
	case x2 > x1:
		return protocol.FacingRight
	case x2 < x1:
		return protocol.FacingLeft
	case y2 > y1:
		return protocol.FacingUp
	default:
		return protocol.FacingDown
	}
}

func (w *World) handleJump(s *player.Session) {
	grid, ok := w.grids[s.Data.Map]
	if !ok {
		return
	}
	out, ok := physics.Jump(s, grid, w.now(), w.cfg.Gameplay.Millis(w.cfg.Gameplay.JumpCooldown))
	if !ok {
		return
	}
	s.LastGravity = w.now()
	for _, sound := range out.Sounds {
		w.play(s, sound)
	}
}

// handleTeleport moves s through the teleporter it stands in. The request
// carries no trusted destination.
func (w *World) handleTeleport(s *player.Session) {
	grid, ok := w.grids[s.Data.Map]
	if !ok {
		return
	}
	tp, ok := grid.TeleporterAt(s.Data.X, s.Data.Y)
	if !ok {
		w.resync(s)
		return
	}
	dest, ok := w.grids[tp.Map]
	if !ok {
		w.logger.Warn("teleporter leads to a missing map", "from", grid.Name, "to", tp.Map)
		return
	}

	x := tp.EndX.Pick(w.rng)
	y := tp.EndY.Pick(w.rng)
	if !dest.InBounds(x, y) {
		x = min(max(x, 0), dest.MaxX)
		y = max(y, 0)
	}
	w.changeMap(s, x, y, dest.Name)
}

// handlePlay relays a cosmetic cue from the client at its current position.
func (w *World) handlePlay(s *player.Session, m *protocol.Play) {
	if m.Sound == "" || strings.Contains(m.Sound, "..") {
		return
	}
	w.play(s, m.Sound)
}

func (w *World) handleAmmo(s *player.Session) {
	if s.Weapon == "" {
		w.say(s, "You don't have a weapon loaded")
		return
	}
	w.say(s, fmt.Sprintf("You have %d ammo loaded, And %d cartridges remaining!", s.Ammo(), s.Cartridges()))
}

// give routes amount of item to s; inventory changes are reported.
func (w *World) give(s *player.Session, item string, amount int) {
	if !s.Data.Give(item, amount) {
		return
	}
	if amount >= 0 {
		w.Send(s, &protocol.Buffer{Text: fmt.Sprintf("You gained %d %s", amount, item)})
	} else {
		w.Send(s, &protocol.Buffer{Text: fmt.Sprintf("You lost %d %s", -amount, item)})
	}
}

func (w *World) useItem(s *player.Session) {
	item, ok := s.Data.Inventory.Current()
	if !ok {
		w.say(s, "Empty")
		return
	}

	if item.Name == itemHealthPotion {
		g := w.cfg.Gameplay
		now := w.now()
		cooldown := g.Millis(g.PotionCooldown)
		if !s.Data.PotionAt.IsZero() {
			if elapsed := now.Sub(s.Data.PotionAt); elapsed < cooldown {
				left := cooldown - elapsed
				seconds := int((left + time.Second - 1) / time.Second)
				w.say(s, fmt.Sprintf("You can't use this, You need to wait %d seconds", seconds))
				return
			}
		}
		if s.Data.Health >= g.MaxHealth {
			w.say(s, "You are already at full health")
			return
		}
		s.Data.PotionAt = now
		w.play(s, soundPotion)
		s.Data.Health = min(s.Data.Health+g.PotionHeal, g.MaxHealth)
	}

	w.give(s, item.Name, -1)
}

func (w *World) cycle(s *player.Session, direction int) {
	if s.Data.Inventory.Empty() {
		w.say(s, "Empty")
		return
	}
	s.Data.Inventory.Cycle(direction)
	w.say(s, s.Data.Inventory.Text())
}

func (w *World) handleChat(s *player.Session, text string) error {
	if line, ok := strings.CutPrefix(text, "/"); ok {
		return w.runCommand(s, line)
	}

	if !s.Data.AgreedToRules {
		w.say(s, rulesPrompt)
		return nil
	}
	if !s.Data.CanChat {
		w.say(s, "You are not allowed to chat")
		return nil
	}
	text, ok := validation.SanitizeChat(text)
	if !ok {
		return nil
	}
	w.Broadcast(&protocol.Chat{Message: fmt.Sprintf("%s says: %s", s.Name, text)})
	return nil
}
