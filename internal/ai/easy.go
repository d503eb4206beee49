package ai

import "github.com/talgya/courier-world/internal/city"

// easyStep is the greedy tier: walk straight at the goal. The only memory
// in play is the tile just left, which is skipped outright so the courier
// does not bounce in place; it remains the dead-end fallback. Ties break
// by shuffled scan order.
func (c *Controller) easyStep(s *Snapshot, goal city.Coord, hasGoal bool) (city.Direction, bool) {
	if !hasGoal {
		return c.randomStep(s)
	}
	m := &c.mem

	var (
		best     city.Direction
		bestDist int
		found    bool
		back     city.Direction
		haveBack bool
	)
	for _, i := range c.rng.Perm(len(city.Directions)) {
		dir := city.Directions[i]
		next := city.Step(s.Pos, dir)
		if !s.Map.IsWalkable(next) {
			continue
		}
		if m.hasPrev && next == m.prev {
			back, haveBack = dir, true
			continue
		}
		if d := city.Manhattan(next, goal); !found || d < bestDist {
			best, bestDist, found = dir, d, true
		}
	}
	if found {
		return best, true
	}
	if haveBack {
		// Dead end; backing out is the only option.
		return back, true
	}
	return 0, false
}

// randomStep wanders to any walkable neighbor, avoiding the tile just left
// unless it is the only way out.
func (c *Controller) randomStep(s *Snapshot) (city.Direction, bool) {
	m := &c.mem

	var (
		back     city.Direction
		haveBack bool
	)
	for _, i := range c.rng.Perm(len(city.Directions)) {
		dir := city.Directions[i]
		next := city.Step(s.Pos, dir)
		if !s.Map.IsWalkable(next) {
			continue
		}
		if m.hasPrev && next == m.prev {
			back, haveBack = dir, true
			continue
		}
		return dir, true
	}
	if haveBack {
		return back, true
	}
	return 0, false
}
