package world

import (
	"fmt"
	"sort"

	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/physics"
	"github.com/siohaza/coas/internal/player"
)

const (
	soundSafe   = "player/safe.mp3"
	soundUnsafe = "player/unsafe.mp3"
	soundBeep   = "items/beep.mp3"
	soundGather = "items/gather.mp3"
)

// Tick advances every timer-driven part of the world by one step. It never
// blocks.
func (w *World) Tick() error {
	if err := w.sweepBans(); err != nil {
		return err
	}
	for _, s := range w.players.GetAll() {
		w.updatePlayer(s)
	}
	w.expireConnections()
	w.updateProjectiles()
	w.updateSpawners()
	return nil
}

func (w *World) sweepBans() error {
	expired := w.bans.Sweep(w.now())
	if len(expired) == 0 {
		return nil
	}
	for _, ban := range expired {
		w.Notify(fmt.Sprintf("%s's temporary ban have expired", ban.Name))
		w.logger.Info("temporary ban expired", "name", ban.Name)
	}
	return w.saveServer()
}

func (w *World) updatePlayer(s *player.Session) {
	g := w.cfg.Gameplay
	now := w.now()

	if s.GotHit && now.Sub(s.HitAt) >= g.Millis(g.HitFlagCooldown) {
		s.GotHit = false
	}

	grid, ok := w.grids[s.Data.Map]
	if !ok {
		return
	}

	switch safe := grid.SafeAt(s.Data.X, s.Data.Y); {
	case safe && !s.Safe:
		s.Safe = true
		s.Firing = false
		w.play(s, soundSafe)
	case !safe && s.Safe:
		s.Safe = false
		w.play(s, soundUnsafe)
	}

	spec, armed := w.weapons.Lookup(s.Weapon)
	if s.Reloading && armed && now.Sub(s.ReloadStarted) >= spec.ReloadTime {
		s.Reloading = false
		s.Refill(spec.Capacity)
	}
	if s.Firing && armed && !s.Safe && !s.Reloading && now.Sub(s.LastFire) >= spec.FireInterval {
		w.shoot(s, spec)
	}

	out := physics.Update(s, grid, now, g.Millis(g.GravityInterval), g.GravityBudget)
	if out.Moved {
		w.broadcastMove(s, true)
		w.resync(s)
	}
	for _, sound := range out.Sounds {
		w.play(s, sound)
	}
}

// expireConnections drops connections that never logged in.
func (w *World) expireConnections() {
	now := w.now()
	timeout := w.cfg.LoginTimeout()
	for conn, p := range w.pending {
		if now.Sub(p.since) < timeout {
			continue
		}
		delete(w.pending, conn)
		w.logger.Debug("login timed out", "conn", conn, "address", p.address)
		w.out.Disconnect(conn)
	}
}

func (w *World) updateSpawners() {
	names := make([]string, 0, len(w.grids))
	for name := range w.grids {
		names = append(names, name)
	}
	sort.Strings(names)

	now := w.now()
	for _, name := range names {
		grid := w.grids[name]
		for _, sp := range grid.Spawners {
			sp.Spawn(now, w.rng)
			for _, item := range sp.Beeping(now) {
				w.Play(soundBeep, item.X, item.Y, name)
			}
			w.collect(grid, sp)
		}
	}
}

func (w *World) collect(grid *maps.Grid, sp *maps.Spawner) {
	for _, s := range w.players.GetAll() {
		if s.Data.Map != grid.Name {
			continue
		}
		item, ok := sp.Take(s.Data.X, s.Data.Y)
		if !ok {
			continue
		}
		w.give(s, item.Name, 1)
		w.play(s, soundGather)
		w.say(s, item.Name)
	}
}
