package world

import (
	"fmt"

	"github.com/siohaza/coas/internal/physics"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/weapon"
)

const (
	soundDeath  = "player/death.mp3"
	soundDialog = "notifications/dialog.mp3"
)

func weaponSound(name, cue string) string {
	return fmt.Sprintf("weapons/%s/%s.mp3", name, cue)
}

func (w *World) draw(s *player.Session, name string) {
	if s.Reloading {
		return
	}
	spec, ok := w.weapons.Lookup(name)
	if !ok || !s.Owns(name) {
		return
	}

	s.Firing = false
	s.Weapon = name
	w.play(s, weaponSound(name, "draw"))
	w.say(s, name)
	w.Send(s, &protocol.WeaponData{
		FireTime:   int32(spec.FireInterval.Milliseconds()),
		ReloadTime: int32(spec.ReloadTime.Milliseconds()),
		Automatic:  spec.Automatic,
	})
}

// fire handles a trigger pull.
func (w *World) fire(s *player.Session) {
	spec, ok := w.weapons.Lookup(s.Weapon)
	if !ok || s.Reloading || s.Safe {
		return
	}
	if now := w.now(); now.Sub(s.LastFire) < spec.FireInterval {
		return
	}
	if w.shoot(s, spec) && spec.Automatic {
		s.Firing = true
	}
}

func (w *World) stopFire(s *player.Session) {
	s.Firing = false
}

// shoot fires one round of the drawn weapon, or clicks empty. It reports
// whether a projectile left the barrel.
func (w *World) shoot(s *player.Session, spec weapon.Spec) bool {
	now := w.now()
	s.LastFire = now
	if !s.TakeAmmo() {
		w.play(s, weaponSound(spec.Name, "empty"))
		return false
	}
	w.play(s, weaponSound(spec.Name, fmt.Sprint(w.rng.Intn(3)+1)))
	w.projectiles = append(w.projectiles, spec.Spawn(s.Data.X, s.Data.Y, s.Data.Direction, s.Name, s.Data.Map, now))
	return true
}

func (w *World) reload(s *player.Session) {
	spec, ok := w.weapons.Lookup(s.Weapon)
	if s.Reloading || !ok || s.Ammo() > 0 {
		return
	}
	if !s.TakeCartridge() {
		w.say(s, "You don't have any cartridges left!")
		return
	}
	s.Reloading = true
	s.ReloadStarted = w.now()
	w.play(s, weaponSound(spec.Name, "reload"))
}

// updateProjectiles steps every live projectile and drops the ones that
// became invalid during this tick.
func (w *World) updateProjectiles() {
	now := w.now()
	live := w.projectiles[:0]
	for _, p := range w.projectiles {
		wall, _ := p.Advance(now, w.grids[p.Map])
		if wall != "" {
			w.Play(physics.WallSound(wall), p.X, p.Y, p.Map)
		}
		if p.Valid {
			w.strike(p)
		}
		if p.Valid {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(w.projectiles); i++ {
		w.projectiles[i] = nil
	}
	w.projectiles = live
}

// strike applies p to the first exposed player standing on its tile.
func (w *World) strike(p *weapon.Projectile) {
	for _, victim := range w.players.GetAll() {
		if victim.Safe || victim.Name == p.Owner || !p.At(victim.Data.X, victim.Data.Y, victim.Data.Map) {
			continue
		}

		victim.Data.Health -= p.Weapon.Damage
		victim.Data.LastHit = p.Owner
		victim.GotHit = true
		victim.HitAt = w.now()
		w.play(victim, fmt.Sprintf("player/pain%d.mp3", w.rng.Intn(3)+1))
		w.play(victim, weaponSound(p.Weapon.Name, fmt.Sprintf("hit%d", w.rng.Intn(3)+1)))

		if shooter, ok := w.players.GetByName(p.Owner); ok && shooter.Data.HitPing {
			w.selfPlay(shooter, soundDialog)
		}
		p.Valid = false

		if victim.Data.Health <= 0 {
			w.kill(victim)
		}
		return
	}
}

// kill respawns victim on the death map and updates the kill feed.
func (w *World) kill(victim *player.Session) {
	g := w.cfg.Gameplay
	w.play(victim, soundDeath)

	victim.Data.Health = g.MaxHealth
	victim.GotHit = false
	victim.Firing = false
	victim.Data.Deaths++
	if killer, ok := w.players.GetByName(victim.Data.LastHit); ok {
		killer.Data.Kills++
	}

	grid := w.grids[g.DeathMap]
	x := min(w.rng.Intn(g.DeathSpread+1), grid.MaxX)
	w.changeMap(victim, x, 0, grid.Name)

	w.Broadcast(&protocol.Buffer{
		Text: fmt.Sprintf("%s Has been killed by %s", victim.Name, victim.Data.LastHit),
		Name: protocol.BufferKills,
	})
	w.logger.Info("player killed", "victim", victim.Name, "killer", victim.Data.LastHit)
}
