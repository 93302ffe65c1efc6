package weapon

import (
	"time"

	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/protocol"
)

// Projectile travels one tile per weapon step along a fixed facing.
type Projectile struct {
	X      int
	Y      int
	Facing int
	Owner  string
	Map    string
	Weapon Spec

	Travelled int
	Valid     bool

	lastMove time.Time
}

func (s Spec) Spawn(x, y, facing int, owner, mapName string, now time.Time) *Projectile {
	return &Projectile{
		X:        x,
		Y:        y,
		Facing:   facing,
		Owner:    owner,
		Map:      mapName,
		Weapon:   s,
		Valid:    true,
		lastMove: now,
	}
}

// Advance moves the projectile when its step interval has elapsed. It
// returns the wall tile it struck, if any. A projectile that strikes a wall
// or travels past its range is invalidated.
func (p *Projectile) Advance(now time.Time, grid *maps.Grid) (wall string, moved bool) {
	if !p.Valid || now.Sub(p.lastMove) < p.Weapon.Step {
		return "", false
	}
	p.lastMove = now

	switch p.Facing {
	case protocol.FacingRight:
		p.X++
	case protocol.FacingLeft:
		p.X--
	case protocol.FacingUp:
		p.Y++
	case protocol.FacingDown:
		p.Y--
	}

	if grid != nil {
		if tile, ok := grid.WallAt(p.X, p.Y); ok {
			p.Valid = false
			return tile, true
		}
	}

	p.Travelled++
	if p.Travelled > p.Weapon.Range {
		p.Valid = false
	}
	return "", true
}

func (p *Projectile) At(x, y int, mapName string) bool {
	return p.X == x && p.Y == y && p.Map == mapName
}
