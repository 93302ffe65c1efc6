package maps

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MaxCoordinate bounds every number in map text so that region spans stay
// well inside int.
const MaxCoordinate = math.MaxInt32

var errArgs = errors.New("wrong number of arguments")

// Parse builds a grid from map text. fallback names the grid when the text
// carries no map line. Unknown directives and blank lines are skipped;
// client-only directives such as ambience stay in Source untouched.
func Parse(fallback, source string) (*Grid, error) {
	grid := &Grid{Name: fallback, Source: source}

	scanner := bufio.NewScanner(strings.NewReader(source))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		if err := parseLine(grid, fields); err != nil {
			return nil, &ParseError{Line: line, Err: fmt.Errorf("%s: %w", fields[0], err)}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read map: %w", err)
	}

	if grid.Name == "" {
		return nil, errors.New("map has no name")
	}
	return grid, nil
}

func parseLine(grid *Grid, fields []string) error {
	args := fields[1:]

	switch fields[0] {
	case "map":
		if len(args) < 1 {
			return errArgs
		}
		grid.Name = args[0]

	case "maxx", "maxy":
		if len(args) != 1 {
			return errArgs
		}
		n, err := parseNonNegative(args[0])
		if err != nil {
			return err
		}
		if fields[0] == "maxx" {
			grid.MaxX = n
		} else {
			grid.MaxY = n
		}

	case "tile":
		if len(args) != 5 {
			return errArgs
		}
		r, err := parseRegion(args)
		if err != nil {
			return err
		}
		grid.AddTile(r, args[4])

	case "zone":
		if len(args) < 5 {
			return errArgs
		}
		r, err := parseRegion(args)
		if err != nil {
			return err
		}
		grid.AddZone(r, strings.Join(args[4:], " "))

	case "safe_zone":
		if len(args) < 4 {
			return errArgs
		}
		r, err := parseRegion(args)
		if err != nil {
			return err
		}
		grid.AddSafeZone(r)

	case "teleporter":
		if len(args) < 7 {
			return errArgs
		}
		r, err := parseRegion(args)
		if err != nil {
			return err
		}
		endX, err := parseSpan(args[4])
		if err != nil {
			return err
		}
		endY, err := parseSpan(args[5])
		if err != nil {
			return err
		}
		grid.AddTeleporter(Teleporter{Region: r, EndX: endX, EndY: endY, Map: args[6]})

	case "items":
		if len(args) < 7 {
			return errArgs
		}
		r, err := parseRegion(args)
		if err != nil {
			return err
		}
		limit, err := parseNonNegative(args[4])
		if err != nil {
			return err
		}
		interval, err := parseNonNegative(args[5])
		if err != nil {
			return err
		}
		grid.AddSpawner(NewSpawner(r, limit, time.Duration(interval)*time.Millisecond, args[6:]))
	}

	return nil
}

func parseRegion(args []string) (Region, error) {
	var v [4]int
	for i := range v {
		n, err := parseCoordinate(args[i])
		if err != nil {
			return Region{}, err
		}
		v[i] = n
	}
	if v[0] > v[1] || v[2] > v[3] {
		return Region{}, fmt.Errorf("inverted region %d..%d, %d..%d", v[0], v[1], v[2], v[3])
	}
	return Region{MinX: v[0], MaxX: v[1], MinY: v[2], MaxY: v[3]}, nil
}

// parseSpan accepts either a single coordinate or an inclusive range
// written as "min...max".
func parseSpan(s string) (Span, error) {
	if lo, hi, ok := strings.Cut(s, "..."); ok {
		from, err := parseCoordinate(lo)
		if err != nil {
			return Span{}, fmt.Errorf("range start: %w", err)
		}
		to, err := parseCoordinate(hi)
		if err != nil {
			return Span{}, fmt.Errorf("range end: %w", err)
		}
		if from > to {
			return Span{}, fmt.Errorf("inverted range %q", s)
		}
		return Span{Min: from, Max: to}, nil
	}

	n, err := parseCoordinate(s)
	if err != nil {
		return Span{}, err
	}
	return Span{Min: n, Max: n}, nil
}

func parseCoordinate(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < -MaxCoordinate || n > MaxCoordinate {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	return n, nil
}

func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxCoordinate {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return n, nil
}

// Blank returns the source text for a fresh map with a single floor row.
func Blank(name string, maxX, maxY int, tile string) string {
	return fmt.Sprintf("map %s\nmaxx %d\nmaxy %d\ntile 0 %d 0 0 %s\n", name, maxX, maxY, maxX, tile)
}
