package ai

import (
	"math"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
)

// Scoring weights for the lookahead tier. The move set rates candidate
// positions a few steps out; the job set rates which job to chase.
const (
	lookaheadDepth = 3

	moveWeightPayout   = 1.2 // Reward for standing on the goal tile
	moveWeightDistance = 0.9
	moveWeightStamina  = 0.5
	moveWeightPriority = 0.4
	moveWeightLoad     = 0.3

	// First-step penalties discourage oscillation: backing onto the
	// previous tile, or revisiting anything in the recent ring.
	reverseStepPenalty = 1.0
	recentStepPenalty  = 2.5

	jobWeightPayout   = 1.1
	jobWeightDistance = 0.8
	jobWeightStamina  = 0.4
	jobWeightPriority = 0.3
	jobWeightLoad     = 0.2

	// The chased job is reconsidered on this interval while heading to its
	// pickup, and swapped only for a clearly better alternative.
	reevalInterval = 5.0
	reevalMargin   = 5.0
)

// priorityValue rewards urgency: tier 0 is worth the most, anything past
// tier 2 nothing.
func priorityValue(p int) float64 {
	v := 2 - p
	if v < 0 {
		v = 0
	}
	return float64(v)
}

// mediumJobScore rates one open job: payout against round-trip distance,
// the stamina that distance will cost in this weather, urgency, and how
// loaded the courier already is. Tired couriers see distance as costlier.
func mediumJobScore(s *Snapshot, j *jobs.Job) float64 {
	total := float64(city.Manhattan(s.Pos, j.Pickup) + city.Manhattan(j.Pickup, j.Dropoff))

	ratio := 1.0
	if s.MaxStamina > 0 {
		ratio = s.Stamina / s.MaxStamina
	}
	estCost := total * s.StaminaMult * (1 + (1 - ratio))

	return jobWeightPayout*j.Payout -
		jobWeightDistance*total -
		jobWeightStamina*estCost +
		jobWeightPriority*priorityValue(j.Priority) -
		jobWeightLoad*s.CarriedWeight
}

// mediumStep runs a bounded depth-first lookahead over walkable moves and
// takes the first step of the best line found. Without a chased job it
// degrades to the greedy tier.
func (c *Controller) mediumStep(s *Snapshot, target *jobs.Job, goal city.Coord, hasGoal bool) (city.Direction, bool) {
	if target == nil {
		return c.easyStep(s, goal, hasGoal)
	}
	m := &c.mem

	leaf := func(pos city.Coord, spent float64) float64 {
		payout := 0.0
		if pos == goal {
			payout = target.Payout
		}
		return moveWeightPayout*payout -
			moveWeightDistance*float64(city.Manhattan(pos, goal)) -
			moveWeightStamina*spent +
			moveWeightPriority*priorityValue(target.Priority) -
			moveWeightLoad*s.CarriedWeight
	}

	var dive func(pos city.Coord, depth int, spent float64) float64
	dive = func(pos city.Coord, depth int, spent float64) float64 {
		if depth == 0 {
			return leaf(pos, spent)
		}
		best := math.Inf(-1)
		moved := false
		for _, dir := range city.Directions {
			next := city.Step(pos, dir)
			if !s.Map.IsWalkable(next) {
				continue
			}
			moved = true
			w, _ := s.Map.SurfaceWeight(next)
			if sc := dive(next, depth-1, spent+w*s.StaminaMult); sc > best {
				best = sc
			}
		}
		if !moved {
			return leaf(pos, spent)
		}
		return best
	}

	var (
		best      city.Direction
		bestScore = math.Inf(-1)
		found     bool
	)
	for _, dir := range city.Directions {
		next := city.Step(s.Pos, dir)
		if !s.Map.IsWalkable(next) {
			continue
		}
		w, _ := s.Map.SurfaceWeight(next)
		cost := w * s.StaminaMult
		if m.hasPrev && next == m.prev {
			cost += reverseStepPenalty
		}
		if m.recentlyVisited(next) {
			cost += recentStepPenalty
		}
		if sc := dive(next, lookaheadDepth-1, cost); sc > bestScore {
			bestScore, best, found = sc, dir, true
		}
	}
	if !found {
		return c.easyStep(s, goal, hasGoal)
	}
	return best, true
}

// reevaluate reconsiders the chased job on a fixed interval while still
// heading to its pickup, before anything is committed. A swap needs a
// clear margin so the controller does not flap between near-equal jobs.
func (c *Controller) reevaluate(s *Snapshot, target *jobs.Job) *jobs.Job {
	m := &c.mem
	if target.Status != jobs.StatusAvailable {
		return target
	}
	if s.Elapsed < m.reevalAt {
		return target
	}
	m.reevalAt = s.Elapsed + reevalInterval

	current := mediumJobScore(s, target)
	var (
		best      *jobs.Job
		bestScore = math.Inf(-1)
	)
	for i := range s.Available {
		j := &s.Available[i]
		if j.ID == target.ID || !fits(s, j) {
			continue
		}
		if sc := mediumJobScore(s, j); sc > bestScore {
			bestScore, best = sc, j
		}
	}
	if best == nil || bestScore <= current+reevalMargin {
		return target
	}

	c.adopt(s, best)
	m.targetStage = stagePickup
	return best
}
