// Package city provides the tile grid, terrain, and spatial queries the
// simulation runs on. The grid is rectangular and 4-connected; coordinates
// are (x, y) with y growing downward, matching row order in map payloads.
package city

import (
	"errors"
	"fmt"
)

// ErrInvalidMap marks a malformed map definition, fatal at load.
var ErrInvalidMap = errors.New("invalid map")

// ErrInvalidTile marks a query for a coordinate outside the grid.
var ErrInvalidTile = errors.New("invalid tile")

// Coord is a tile position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Terrain types for city tiles.
type Terrain uint8

const (
	TerrainStreet   Terrain = iota // Walkable pavement, baseline cost
	TerrainPark                    // Walkable green space, usually slower
	TerrainBuilding                // Solid block, never walkable
	TerrainBlocked                 // Construction/closure, never walkable
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainStreet:
		return "Street"
	case TerrainPark:
		return "Park"
	case TerrainBuilding:
		return "Building"
	case TerrainBlocked:
		return "Blocked"
	default:
		return "Unknown"
	}
}

// Walkable reports whether the terrain kind can be entered at all.
func (t Terrain) Walkable() bool {
	return t == TerrainStreet || t == TerrainPark
}

// Tile is a single grid cell. Immutable after map load.
type Tile struct {
	Terrain Terrain `json:"terrain"`
	Weight  float64 `json:"weight"` // Surface cost multiplier, > 0
}

// TileSpec describes one legend entry when decoding a character grid.
type TileSpec struct {
	Terrain Terrain
	Weight  float64
}

// DefaultLegend matches the character codes the remote map feed uses:
// C street, P park, B building, X blocked.
var DefaultLegend = map[rune]TileSpec{
	'C': {Terrain: TerrainStreet, Weight: 1.0},
	'P': {Terrain: TerrainPark, Weight: 1.2},
	'B': {Terrain: TerrainBuilding, Weight: 1.0},
	'X': {Terrain: TerrainBlocked, Weight: 1.0},
}

// Direction is one of the four grid moves.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West
)

var directionDeltas = [4][2]int{
	{0, -1}, // North
	{0, 1},  // South
	{1, 0},  // East
	{-1, 0}, // West
}

// Directions lists the four moves in the canonical scan order used for
// neighbor enumeration. Keeping the order fixed keeps searches deterministic.
var Directions = [4]Direction{North, South, East, West}

// Delta returns the coordinate offset of the direction.
func (d Direction) Delta() (dx, dy int) {
	return directionDeltas[d][0], directionDeltas[d][1]
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// Step returns the coordinate one tile from c in direction d.
func Step(c Coord, d Direction) Coord {
	dx, dy := d.Delta()
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Manhattan returns the L1 distance between two coordinates.
func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Map holds the complete city grid. Immutable after load; derived views
// (building clusters, door tiles) are computed once and cached.
type Map struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Tiles  [][]Tile `json:"tiles"` // Row-major: Tiles[y][x]
	Goal   float64  `json:"goal"`  // Session income target
	Name   string   `json:"name"`

	clusters []Cluster
	doors    []Coord
}

// FromGrid builds a map from character rows and a legend. Every row must have
// the same width, every rune must appear in the legend, and every legend
// weight must be positive. Violations are load-time failures.
func FromGrid(rows []string, legend map[rune]TileSpec, goal float64, name string) (*Map, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidMap)
	}
	width := len([]rune(rows[0]))

	for r, spec := range legend {
		if spec.Weight <= 0 {
			return nil, fmt.Errorf("%w: legend %q has non-positive weight %v", ErrInvalidMap, r, spec.Weight)
		}
	}

	m := &Map{
		Width:  width,
		Height: len(rows),
		Tiles:  make([][]Tile, len(rows)),
		Goal:   goal,
		Name:   name,
	}

	walkable := 0
	for y, row := range rows {
		cells := []rune(row)
		if len(cells) != width {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrInvalidMap, y, len(cells), width)
		}
		m.Tiles[y] = make([]Tile, width)
		for x, r := range cells {
			spec, ok := legend[r]
			if !ok {
				return nil, fmt.Errorf("%w: unknown code %q at (%d,%d)", ErrInvalidMap, r, x, y)
			}
			m.Tiles[y][x] = Tile{Terrain: spec.Terrain, Weight: spec.Weight}
			if spec.Terrain.Walkable() {
				walkable++
			}
		}
	}

	if walkable == 0 {
		return nil, fmt.Errorf("%w: no walkable tiles", ErrInvalidMap)
	}
	return m, nil
}

// InBounds reports whether the coordinate lies on the grid.
func (m *Map) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < m.Width && c.Y >= 0 && c.Y < m.Height
}

// At returns the tile at c. The second result is false out of bounds.
func (m *Map) At(c Coord) (Tile, bool) {
	if !m.InBounds(c) {
		return Tile{}, false
	}
	return m.Tiles[c.Y][c.X], true
}

// IsWalkable reports whether c is on the grid and enterable.
func (m *Map) IsWalkable(c Coord) bool {
	t, ok := m.At(c)
	return ok && t.Terrain.Walkable()
}

// SurfaceWeight returns the positive cost multiplier of the tile at c.
func (m *Map) SurfaceWeight(c Coord) (float64, error) {
	t, ok := m.At(c)
	if !ok {
		return 0, fmt.Errorf("%w: (%d,%d) out of bounds", ErrInvalidTile, c.X, c.Y)
	}
	return t.Weight, nil
}

// Neighbors returns the walkable tiles edge-adjacent to c, in the canonical
// N/S/E/W scan order. At most four.
func (m *Map) Neighbors(c Coord) []Coord {
	out := make([]Coord, 0, 4)
	for _, d := range Directions {
		n := Step(c, d)
		if m.IsWalkable(n) {
			out = append(out, n)
		}
	}
	return out
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(%s %dx%d, goal=%.0f)", m.Name, m.Width, m.Height, m.Goal)
}
