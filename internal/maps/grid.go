package maps

import (
	"math/rand"
	"strings"
)

type Region struct {
	MinX int
	MaxX int
	MinY int
	MaxY int
}

func (r Region) Contains(x, y int) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

type Tile struct {
	Region
	Name string
}

type Zone struct {
	Region
	Text string
}

// Span is an inclusive coordinate range. A fixed destination has Min == Max.
type Span struct {
	Min int
	Max int
}

func (s Span) Pick(rng *rand.Rand) int {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rng.Intn(s.Max-s.Min+1)
}

type Teleporter struct {
	Region
	EndX Span
	EndY Span
	Map  string
}

// Grid is one named map. Region lookups scan newest first, so a region added
// later shadows any earlier region it overlaps.
type Grid struct {
	Name string
	MaxX int
	MaxY int

	// Source is the text the grid was parsed from; clients render from it.
	Source string

	Spawners []*Spawner

	tiles       []Tile
	zones       []Zone
	safeZones   []Region
	teleporters []Teleporter
}

func NewGrid(name string, maxX, maxY int) *Grid {
	return &Grid{Name: name, MaxX: maxX, MaxY: maxY}
}

func IsWall(tile string) bool {
	return strings.Contains(tile, "wall")
}

func (g *Grid) AddTile(r Region, name string) {
	g.tiles = append(g.tiles, Tile{Region: r, Name: name})
}

func (g *Grid) AddZone(r Region, text string) {
	g.zones = append(g.zones, Zone{Region: r, Text: text})
}

func (g *Grid) AddSafeZone(r Region) {
	g.safeZones = append(g.safeZones, r)
}

func (g *Grid) AddTeleporter(t Teleporter) {
	g.teleporters = append(g.teleporters, t)
}

func (g *Grid) AddSpawner(s *Spawner) {
	g.Spawners = append(g.Spawners, s)
}

func (g *Grid) TileAt(x, y int) (string, bool) {
	for i := len(g.tiles) - 1; i >= 0; i-- {
		if g.tiles[i].Contains(x, y) {
			return g.tiles[i].Name, true
		}
	}
	return "", false
}

func (g *Grid) WallAt(x, y int) (string, bool) {
	tile, ok := g.TileAt(x, y)
	if !ok || !IsWall(tile) {
		return "", false
	}
	return tile, true
}

func (g *Grid) ZoneAt(x, y int) (string, bool) {
	for i := len(g.zones) - 1; i >= 0; i-- {
		if g.zones[i].Contains(x, y) {
			return g.zones[i].Text, true
		}
	}
	return "", false
}

func (g *Grid) SafeAt(x, y int) bool {
	for i := len(g.safeZones) - 1; i >= 0; i-- {
		if g.safeZones[i].Contains(x, y) {
			return true
		}
	}
	return false
}

func (g *Grid) TeleporterAt(x, y int) (Teleporter, bool) {
	for i := len(g.teleporters) - 1; i >= 0; i-- {
		if g.teleporters[i].Contains(x, y) {
			return g.teleporters[i], true
		}
	}
	return Teleporter{}, false
}

// InBounds reports whether x lies on the walkable axis of the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x <= g.MaxX && y >= 0
}

func (g *Grid) Counts() (tiles, zones, safeZones, teleporters, spawners int) {
	return len(g.tiles), len(g.zones), len(g.safeZones), len(g.teleporters), len(g.Spawners)
}
