package ai

import (
	"errors"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/route"
)

const (
	// Distance discounts for the chained job estimate: the first leg costs
	// more per tile than the speculative follow-up.
	chainFirstDiscount  = 0.8
	chainSecondDiscount = 0.6

	// Below this stamina fraction routes are replanned so the courier is
	// not committed to an expensive line it can no longer afford.
	replanStaminaFrac = 0.25
)

// chainScore values a job by its own profit plus the best follow-up from
// its dropoff. A bounded two-stop estimate: enough to prefer jobs that
// leave the courier somewhere useful, without solving the full tour.
func (c *Controller) chainScore(s *Snapshot, j *jobs.Job) float64 {
	d1 := city.Manhattan(s.Pos, j.Pickup) + city.Manhattan(j.Pickup, j.Dropoff)
	score := j.Payout - chainFirstDiscount*float64(d1)

	best := 0.0
	for i := range s.Available {
		o := &s.Available[i]
		if o.ID == j.ID {
			continue
		}
		d2 := city.Manhattan(j.Dropoff, o.Pickup) + city.Manhattan(o.Pickup, o.Dropoff)
		if extra := o.Payout - chainSecondDiscount*float64(d2); extra > best {
			best = extra
		}
	}
	return score + best
}

func winded(s *Snapshot) bool {
	return s.Stamina < replanStaminaFrac*s.MaxStamina
}

// hardStep follows a full planned route, replanning when the world shifts
// out from under it: the plan ran out, the weather state changed, the
// stamina regime flipped, or the next tile stopped being walkable. With no
// plan to follow it moves like the lookahead tier.
func (c *Controller) hardStep(s *Snapshot, target *jobs.Job, goal city.Coord, hasGoal bool) (city.Direction, bool) {
	if target == nil {
		return c.mediumStep(s, target, goal, hasGoal)
	}
	m := &c.mem

	// Consume the step the engine already carried out.
	if m.planValid && m.planIndex < len(m.plan.Steps) && s.Pos == m.plan.Steps[m.planIndex] {
		m.planIndex++
	}

	if c.needReplan(s) {
		plan, err := route.Find(s.Map, s.Pos, goal, route.Options{StaminaCost: s.StaminaMult})
		if err != nil {
			if errors.Is(err, route.ErrUnreachable) {
				// This job cannot be reached from here; chase another.
				c.forceWander(s)
				return c.mediumStep(s, nil, city.Coord{}, false)
			}
			m.dropPlan()
			return c.mediumStep(s, target, goal, hasGoal)
		}
		m.plan = plan
		m.planValid = true
		m.planIndex = 0
		m.planWeather = s.Weather
		m.planWinded = winded(s)
	}

	if !m.planValid || m.planIndex >= len(m.plan.Steps) {
		return c.mediumStep(s, target, goal, hasGoal)
	}

	next := m.plan.Steps[m.planIndex]
	if !s.Map.IsWalkable(next) || city.Manhattan(s.Pos, next) != 1 {
		m.dropPlan()
		return c.mediumStep(s, target, goal, hasGoal)
	}
	return directionTo(s.Pos, next)
}

func (c *Controller) needReplan(s *Snapshot) bool {
	m := &c.mem
	switch {
	case !m.planValid, m.planIndex >= len(m.plan.Steps):
		return true
	case m.planWeather != s.Weather:
		return true
	case m.planWinded != winded(s):
		return true
	}
	return false
}

// directionTo maps an adjacent destination to the move reaching it.
func directionTo(from, to city.Coord) (city.Direction, bool) {
	for _, dir := range city.Directions {
		if city.Step(from, dir) == to {
			return dir, true
		}
	}
	return 0, false
}
