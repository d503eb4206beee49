// Package route provides cost-aware shortest paths over the city grid.
// Plans are pure data: the search is stateless and deterministic, so
// identical inputs always produce identical plans. Callers re-plan when
// weather shifts materially or a step becomes blocked.
package route

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/talgya/courier-world/internal/city"
)

// ErrUnreachable is returned when no walkable path connects the endpoints.
var ErrUnreachable = errors.New("no path")

// DefaultMaxExpand bounds node expansions so planning can never stall a tick.
const DefaultMaxExpand = 10000

// Options parameterize one search.
type Options struct {
	StaminaCost float64 // Current weather stamina-cost multiplier, > 0
	MaxExpand   int     // Node expansion cap; DefaultMaxExpand when 0
}

// Plan is an immutable search result. Steps exclude the start tile and end
// on the destination; Cost is the summed entry cost of every step.
type Plan struct {
	Steps []city.Coord
	Cost  float64
}

// node is a frontier entry. Stale duplicates are skipped on pop.
type node struct {
	c city.Coord
	g float64
	f float64
	h int // Raw Manhattan distance, first tie-break
}

type frontier []node

func (q frontier) Len() int { return len(q) }

func (q frontier) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	if q[i].h != q[j].h {
		return q[i].h < q[j].h
	}
	if q[i].c.Y != q[j].c.Y {
		return q[i].c.Y < q[j].c.Y
	}
	return q[i].c.X < q[j].c.X
}

func (q frontier) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *frontier) Push(x any) { *q = append(*q, x.(node)) }

func (q *frontier) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// Find runs A* from one tile to another. The cost of entering a tile is its
// surface weight times the stamina multiplier; the heuristic is Manhattan
// distance scaled by the cheapest entry cost on the map, which keeps it
// admissible whatever the legend weights are.
func Find(m *city.Map, from, to city.Coord, opts Options) (Plan, error) {
	if opts.StaminaCost <= 0 {
		return Plan{}, fmt.Errorf("stamina multiplier %v must be positive", opts.StaminaCost)
	}
	maxExpand := opts.MaxExpand
	if maxExpand <= 0 {
		maxExpand = DefaultMaxExpand
	}

	if !m.IsWalkable(from) || !m.IsWalkable(to) {
		return Plan{}, fmt.Errorf("%w: (%d,%d) to (%d,%d)", ErrUnreachable, from.X, from.Y, to.X, to.Y)
	}
	if from == to {
		return Plan{Steps: []city.Coord{}, Cost: 0}, nil
	}

	hScale := cheapestEntry(m) * opts.StaminaCost

	gScore := map[city.Coord]float64{from: 0}
	cameFrom := map[city.Coord]city.Coord{}
	closed := map[city.Coord]bool{}

	open := frontier{{c: from, g: 0, f: float64(city.Manhattan(from, to)) * hScale, h: city.Manhattan(from, to)}}
	heap.Init(&open)

	expanded := 0
	for open.Len() > 0 {
		cur := heap.Pop(&open).(node)
		if closed[cur.c] {
			continue
		}
		if cur.c == to {
			return Plan{Steps: rebuild(cameFrom, from, to), Cost: cur.g}, nil
		}
		closed[cur.c] = true

		expanded++
		if expanded > maxExpand {
			return Plan{}, fmt.Errorf("%w: search cap %d hit", ErrUnreachable, maxExpand)
		}

		for _, n := range m.Neighbors(cur.c) {
			if closed[n] {
				continue
			}
			w, err := m.SurfaceWeight(n)
			if err != nil {
				continue
			}
			g := cur.g + w*opts.StaminaCost
			if old, seen := gScore[n]; seen && g >= old {
				continue
			}
			gScore[n] = g
			cameFrom[n] = cur.c
			h := city.Manhattan(n, to)
			heap.Push(&open, node{c: n, g: g, f: g + float64(h)*hScale, h: h})
		}
	}

	return Plan{}, fmt.Errorf("%w: (%d,%d) to (%d,%d)", ErrUnreachable, from.X, from.Y, to.X, to.Y)
}

// cheapestEntry returns the lowest surface weight among walkable tiles.
func cheapestEntry(m *city.Map) float64 {
	min := 0.0
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			t := m.Tiles[y][x]
			if !t.Terrain.Walkable() {
				continue
			}
			if min == 0 || t.Weight < min {
				min = t.Weight
			}
		}
	}
	if min == 0 {
		min = 1
	}
	return min
}

// rebuild walks the parent links back from the goal.
func rebuild(cameFrom map[city.Coord]city.Coord, from, to city.Coord) []city.Coord {
	var rev []city.Coord
	for c := to; c != from; c = cameFrom[c] {
		rev = append(rev, c)
	}
	steps := make([]city.Coord, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		steps = append(steps, rev[i])
	}
	return steps
}
