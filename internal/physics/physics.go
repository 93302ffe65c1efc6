package physics

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
)

const (
	// airborne distance from which a landing is hard
	HardLandRange  = 10
	FootstepSounds = 5

	SoundFall = "player/fall.mp3"
	SoundJump = "player/jump.mp3"
)

// Outcome describes what a movement step did. Sounds are played at the
// player's position after the step.
type Outcome struct {
	Moved  bool
	Sounds []string
}

func (o *Outcome) play(sound string) {
	if sound != "" {
		o.Sounds = append(o.Sounds, sound)
	}
}

func WallSound(tile string) string {
	return fmt.Sprintf("walls/%s.mp3", tile)
}

// Update runs one gravity step when interval has passed since the last one.
func Update(p *player.Session, grid *maps.Grid, now time.Time, interval time.Duration, budget int) Outcome {
	if now.Sub(p.LastGravity) < interval {
		return Outcome{}
	}
	p.LastGravity = now
	return Gravity(p, grid, budget)
}

// Gravity advances the vertical state machine by one step. budget bounds
// both the ascent of a jump and the descent that follows it.
func Gravity(p *player.Session, grid *maps.Grid, budget int) Outcome {
	var out Outcome
	d := &p.Data

	switch p.Motion {
	case player.Falling:
		if wall, ok := grid.WallAt(d.X, d.Y-1); ok {
			land(p, &out, WallSound(wall))
			break
		}
		d.Y--
		p.Airborne++
		out.Moved = true
		if d.Y <= 0 || hasTile(grid, d.X, d.Y) {
			if d.Y < 0 {
				d.Y = 0
			}
			land(p, &out, landSound(grid, d.X, d.Y, p.Airborne))
		}

	case player.Jumping:
		d.Y++
		p.Airborne++
		out.Moved = true
		if p.Airborne >= budget {
			p.Airborne = 0
			p.Motion = player.Landing
		}
		if wall, ok := grid.WallAt(d.X, d.Y); ok {
			d.Y--
			p.Airborne = 0
			p.Motion = player.Landing
			out.play(WallSound(wall))
		}

	case player.Landing:
		if wall, ok := grid.WallAt(d.X, d.Y-1); ok {
			land(p, &out, WallSound(wall))
			break
		}
		d.Y--
		p.Airborne++
		out.Moved = true
		grounded := d.Y <= 0 || hasTile(grid, d.X, d.Y)
		if d.Y < 0 {
			d.Y = 0
		}
		switch {
		case grounded:
			land(p, &out, landSound(grid, d.X, d.Y, p.Airborne))
		case p.Airborne >= budget:
			p.Airborne = 0
			p.Motion = player.Falling
			out.play(SoundFall)
		}

	case player.OnGround:
		if !supported(grid, d.X, d.Y) {
			p.Motion = player.Falling
			out.play(SoundFall)
		}
	}

	return out
}

func land(p *player.Session, out *Outcome, sound string) {
	out.play(sound)
	p.Airborne = 0
	p.Motion = player.OnGround
}

// supported reports whether a player at (x, y) stands on something: the
// bottom row, a tile at its own position, or the top of a wall below.
// Walls are never occupied, so they carry the player from underneath.
func supported(grid *maps.Grid, x, y int) bool {
	if y <= 0 || hasTile(grid, x, y) {
		return true
	}
	_, ok := grid.WallAt(x, y-1)
	return ok
}

// Jump starts an ascent. It is refused unless the player stands still on
// the ground, the cooldown has passed and nothing occupies the tile above.
func Jump(p *player.Session, grid *maps.Grid, now time.Time, cooldown time.Duration) (Outcome, bool) {
	if p.Motion != player.OnGround {
		return Outcome{}, false
	}
	if p.Jumped && now.Sub(p.JumpedAt) < cooldown {
		return Outcome{}, false
	}
	if hasTile(grid, p.Data.X, p.Data.Y+1) {
		return Outcome{}, false
	}

	p.Jumped = true
	p.JumpedAt = now
	p.Airborne = 0
	p.Motion = player.Jumping

	var out Outcome
	out.play(SoundJump)
	return out, true
}

// Step moves the player one tile in direction. Horizontal steps stay within
// the grid's x bounds; vertical steps need the player on the ground and a
// tile to climb onto. A wall at the destination blocks the step and plays
// its impact sound without moving.
func Step(p *player.Session, grid *maps.Grid, direction int, rng *rand.Rand) (Outcome, bool) {
	d := &p.Data
	x, y := d.X, d.Y

	switch direction {
	case protocol.FacingRight:
		if x >= grid.MaxX {
			return Outcome{}, false
		}
		x++
	case protocol.FacingLeft:
		if x <= 0 {
			return Outcome{}, false
		}
		x--
	case protocol.FacingUp:
		if p.Motion != player.OnGround || !hasTile(grid, x, y+1) {
			return Outcome{}, false
		}
		y++
	case protocol.FacingDown:
		if y <= 0 || p.Motion != player.OnGround || !hasTile(grid, x, y-1) {
			return Outcome{}, false
		}
		y--
	default:
		return Outcome{}, false
	}

	var out Outcome
	if wall, ok := grid.WallAt(x, y); ok {
		out.play(WallSound(wall))
		return out, false
	}

	d.X, d.Y = x, y
	out.Moved = true
	if tile, ok := grid.TileAt(x, y); ok {
		out.play(fmt.Sprintf("steps/%s/step%d.mp3", tile, rng.Intn(FootstepSounds)+1))
	}
	return out, true
}

func landSound(grid *maps.Grid, x, y, airborne int) string {
	tile, ok := grid.TileAt(x, y)
	if !ok {
		return ""
	}
	if airborne < HardLandRange {
		return fmt.Sprintf("steps/%s/land.mp3", tile)
	}
	return fmt.Sprintf("steps/%s/hardland.mp3", tile)
}

func hasTile(grid *maps.Grid, x, y int) bool {
	_, ok := grid.TileAt(x, y)
	return ok
}
