package maps

import (
	"math/rand"
	"time"
)

const (
	BeepInterval = 650 * time.Millisecond
	PickupRange  = 3
)

type Item struct {
	X    int
	Y    int
	Name string

	lastBeep time.Time
}

// Spawner drops random items into its region, keeping at most Max alive.
type Spawner struct {
	Region
	Max      int
	Interval time.Duration
	Names    []string
	Items    []*Item

	lastSpawn time.Time
}

func NewSpawner(r Region, limit int, interval time.Duration, names []string) *Spawner {
	return &Spawner{
		Region:   r,
		Max:      limit,
		Interval: interval,
		Names:    names,
	}
}

// Spawn places a new item when the interval has elapsed and the spawner is
// below its limit. The first call only starts the interval.
func (s *Spawner) Spawn(now time.Time, rng *rand.Rand) (*Item, bool) {
	if s.lastSpawn.IsZero() {
		s.lastSpawn = now
		return nil, false
	}
	if len(s.Names) == 0 || len(s.Items) >= s.Max || now.Sub(s.lastSpawn) < s.Interval {
		return nil, false
	}
	s.lastSpawn = now

	item := &Item{
		X:        s.MinX + rng.Intn(s.MaxX-s.MinX+1),
		Y:        s.MinY + rng.Intn(s.MaxY-s.MinY+1),
		Name:     s.Names[rng.Intn(len(s.Names))],
		lastBeep: now,
	}
	s.Items = append(s.Items, item)
	return item, true
}

// Beeping returns the items whose beacon is due and restarts their timers.
func (s *Spawner) Beeping(now time.Time) []*Item {
	var due []*Item
	for _, item := range s.Items {
		if now.Sub(item.lastBeep) >= BeepInterval {
			item.lastBeep = now
			due = append(due, item)
		}
	}
	return due
}

// Take removes and returns the first item within pickup range of x, y.
func (s *Spawner) Take(x, y int) (*Item, bool) {
	for i, item := range s.Items {
		if abs(item.X-x)+abs(item.Y-y) <= PickupRange {
			s.Items = append(s.Items[:i], s.Items[i+1:]...)
			return item, true
		}
	}
	return nil, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
