package route

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/courier-world/internal/city"
)

func grid(t *testing.T, rows []string, legend map[rune]city.TileSpec) *city.Map {
	t.Helper()
	if legend == nil {
		legend = city.DefaultLegend
	}
	m, err := city.FromGrid(rows, legend, 100, "fixture")
	require.NoError(t, err)
	return m
}

func TestOpenGridPathLengths(t *testing.T) {
	m := grid(t, []string{
		"CCC",
		"CCC",
		"CCC",
	}, nil)

	// Corner to corner of one edge: two steps, weight 1 each.
	p, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 2, Y: 0}, Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)
	assert.Equal(t, 2.0, p.Cost)
	assert.Equal(t, city.Coord{X: 2, Y: 0}, p.Steps[len(p.Steps)-1])

	// Down the far column.
	p, err = Find(m, city.Coord{X: 2, Y: 0}, city.Coord{X: 2, Y: 2}, Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Len(t, p.Steps, 2)
	assert.Equal(t, 2.0, p.Cost)
}

func TestSameTile(t *testing.T) {
	m := grid(t, []string{"CC"}, nil)
	p, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 0, Y: 0}, Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Empty(t, p.Steps)
	assert.Zero(t, p.Cost)
}

func TestUnreachable(t *testing.T) {
	m := grid(t, []string{
		"CBC",
		"CBC",
		"CBC",
	}, nil)

	_, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 2, Y: 2}, Options{StaminaCost: 1})
	assert.ErrorIs(t, err, ErrUnreachable)

	// Building endpoints are unreachable by definition.
	_, err = Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 1, Y: 1}, Options{StaminaCost: 1})
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestRoutesAroundExpensiveSurface(t *testing.T) {
	// Park costs 3x street here; the direct line through the park loses to
	// the street detour.
	legend := map[rune]city.TileSpec{
		'C': {Terrain: city.TerrainStreet, Weight: 1},
		'P': {Terrain: city.TerrainPark, Weight: 3},
	}
	m := grid(t, []string{
		"CCC",
		"CPC",
		"CPC",
		"CCC",
	}, legend)

	p, err := Find(m, city.Coord{X: 1, Y: 0}, city.Coord{X: 1, Y: 3}, Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, p.Cost, "detour over five street tiles beats two park tiles")
	for _, s := range p.Steps {
		tile, ok := m.At(s)
		require.True(t, ok)
		assert.NotEqual(t, city.TerrainPark, tile.Terrain)
	}
}

func TestWeatherScalesCostNotShape(t *testing.T) {
	m := grid(t, []string{
		"CCCC",
		"CBBC",
		"CCCC",
	}, nil)

	calm, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 3, Y: 2}, Options{StaminaCost: 1})
	require.NoError(t, err)
	storm, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 3, Y: 2}, Options{StaminaCost: 2})
	require.NoError(t, err)

	assert.Equal(t, calm.Steps, storm.Steps)
	assert.InDelta(t, calm.Cost*2, storm.Cost, 1e-9)
}

func TestDeterministicPlans(t *testing.T) {
	m := grid(t, []string{
		"CCCCC",
		"CCCCC",
		"CCCCC",
		"CCCCC",
	}, nil)

	first, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 4, Y: 3}, Options{StaminaCost: 1})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 4, Y: 3}, Options{StaminaCost: 1})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestExpansionCap(t *testing.T) {
	m := grid(t, []string{
		"CCCCCCCC",
		"CCCCCCCC",
		"CCCCCCCC",
		"CCCCCCCC",
	}, nil)

	_, err := Find(m, city.Coord{X: 0, Y: 0}, city.Coord{X: 7, Y: 3}, Options{StaminaCost: 1, MaxExpand: 3})
	assert.ErrorIs(t, err, ErrUnreachable)
}

// bruteForceCost explores every simple path and returns the cheapest total
// entry cost, for checking optimality on small fixtures.
func bruteForceCost(m *city.Map, from, to city.Coord, mult float64) float64 {
	best := math.Inf(1)
	visited := map[city.Coord]bool{from: true}

	var walk func(c city.Coord, cost float64)
	walk = func(c city.Coord, cost float64) {
		if cost >= best {
			return
		}
		if c == to {
			best = cost
			return
		}
		for _, n := range m.Neighbors(c) {
			if visited[n] {
				continue
			}
			w, err := m.SurfaceWeight(n)
			if err != nil {
				continue
			}
			visited[n] = true
			walk(n, cost+w*mult)
			visited[n] = false
		}
	}
	walk(from, 0)
	return best
}

func TestOptimalityAgainstBruteForce(t *testing.T) {
	legend := map[rune]city.TileSpec{
		'C': {Terrain: city.TerrainStreet, Weight: 1},
		'P': {Terrain: city.TerrainPark, Weight: 1.7},
		'B': {Terrain: city.TerrainBuilding, Weight: 1},
	}
	fixtures := [][]string{
		{
			"CPCC",
			"CBPC",
			"CCCC",
		},
		{
			"CCCC",
			"PBBC",
			"CCPC",
			"CPCC",
		},
		{
			"CPC",
			"PCP",
			"CPC",
		},
	}

	for _, rows := range fixtures {
		m := grid(t, rows, legend)
		h := m.Height
		w := m.Width
		for _, mult := range []float64{1.0, 1.3, 2.0} {
			for _, pair := range [][2]city.Coord{
				{{X: 0, Y: 0}, {X: w - 1, Y: h - 1}},
				{{X: 0, Y: h - 1}, {X: w - 1, Y: 0}},
			} {
				want := bruteForceCost(m, pair[0], pair[1], mult)
				p, err := Find(m, pair[0], pair[1], Options{StaminaCost: mult})
				require.NoError(t, err)
				assert.InDelta(t, want, p.Cost, 1e-9,
					"grid %v multiplier %v from %v to %v", rows, mult, pair[0], pair[1])
			}
		}
	}
}
