// Synthetic city generation using layered simplex noise. Arterial streets are
// laid on a fixed grid so the walkable network is connected by construction;
// noise decides how each block between them fills in.
package city

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds city generation parameters.
type GenConfig struct {
	Width     int     // Grid width in tiles
	Height    int     // Grid height in tiles
	Seed      int64   // Noise seed; same seed, same city
	BlockSize int     // Tiles per block between arterial streets
	ParkLvl   float64 // Noise threshold below which a block becomes a park
	DenseLvl  float64 // Noise threshold above which a block fills solid

	StreetWeight float64 // Surface cost of street tiles
	ParkWeight   float64 // Surface cost of park tiles

	Goal float64 // Income target written into the map
	Name string
}

// DefaultGenConfig returns a mid-size city comparable to the remote feeds.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:        28,
		Height:       20,
		Seed:         1,
		BlockSize:    3,
		ParkLvl:      0.32,
		DenseLvl:     0.58,
		StreetWeight: 1.0,
		ParkWeight:   1.2,
		Goal:         3000,
		Name:         "generated",
	}
}

// SmallTestConfig returns a tiny city for rapid iteration and tests.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:        9,
		Height:       7,
		Seed:         42,
		BlockSize:    2,
		ParkLvl:      0.30,
		DenseLvl:     0.60,
		StreetWeight: 1.0,
		ParkWeight:   1.2,
		Goal:         500,
		Name:         "test",
	}
}

// Generate creates a complete city map from the configuration. Output is
// fully determined by the config, including the seed.
func Generate(cfg GenConfig) *Map {
	if cfg.BlockSize < 1 {
		cfg.BlockSize = 3
	}
	noise := opensimplex.NewNormalized(cfg.Seed)

	m := &Map{
		Width:  cfg.Width,
		Height: cfg.Height,
		Tiles:  make([][]Tile, cfg.Height),
		Goal:   cfg.Goal,
		Name:   cfg.Name,
	}

	street := Tile{Terrain: TerrainStreet, Weight: cfg.StreetWeight}
	park := Tile{Terrain: TerrainPark, Weight: cfg.ParkWeight}
	building := Tile{Terrain: TerrainBuilding, Weight: 1.0}

	pitch := cfg.BlockSize + 1
	for y := 0; y < cfg.Height; y++ {
		m.Tiles[y] = make([]Tile, cfg.Width)
		for x := 0; x < cfg.Width; x++ {
			// Arterial streets on the block grid, plus the outer ring.
			onStreet := x%pitch == 0 || y%pitch == 0 ||
				x == cfg.Width-1 || y == cfg.Height-1
			if onStreet {
				m.Tiles[y][x] = street
				continue
			}

			// Block interior: one noise sample per block decides its use,
			// a second finer octave breaks dense blocks up.
			bx := float64(x/pitch) + 0.5
			by := float64(y/pitch) + 0.5
			blockVal := octaveNoise(noise, bx, by, 3, 0.35, 0.5)

			switch {
			case blockVal < cfg.ParkLvl:
				m.Tiles[y][x] = park
			case blockVal > cfg.DenseLvl:
				m.Tiles[y][x] = building
			default:
				fine := noise.Eval2(float64(x)*0.9, float64(y)*0.9)
				if fine > 0.55 {
					m.Tiles[y][x] = park
				} else {
					m.Tiles[y][x] = building
				}
			}
		}
	}

	// Post-pass: scattered park tiles can form pockets sealed off by
	// buildings. Fill anything the street network cannot reach.
	sealDisconnected(m)

	return m
}

// sealDisconnected converts walkable tiles unreachable from the street grid
// into buildings, so every remaining walkable tile is connected. (0,0) is an
// arterial street by construction.
func sealDisconnected(m *Map) {
	reached := make([]bool, m.Width*m.Height)
	idx := func(c Coord) int { return c.Y*m.Width + c.X }

	start := Coord{X: 0, Y: 0}
	queue := []Coord{start}
	reached[idx(start)] = true
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, n := range m.Neighbors(c) {
			if !reached[idx(n)] {
				reached[idx(n)] = true
				queue = append(queue, n)
			}
		}
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := Coord{X: x, Y: y}
			if m.Tiles[y][x].Terrain.Walkable() && !reached[idx(c)] {
				m.Tiles[y][x] = Tile{Terrain: TerrainBuilding, Weight: 1.0}
			}
		}
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
