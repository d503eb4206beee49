// Package ai drives the courier when no player does. Three tiers share one
// contract: read a world snapshot, emit an intent. Controllers never touch
// world state directly; the engine validates and applies what they ask for.
package ai

import (
	"fmt"
	"strings"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

// Tier selects the decision policy.
type Tier uint8

const (
	Easy Tier = iota
	Medium
	Hard
)

func (t Tier) String() string {
	switch t {
	case Easy:
		return "easy"
	case Medium:
		return "medium"
	case Hard:
		return "hard"
	default:
		return "unknown"
	}
}

// ParseTier reads a tier name from configuration.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(s) {
	case "easy":
		return Easy, nil
	case "medium":
		return Medium, nil
	case "hard":
		return Hard, nil
	default:
		return Easy, fmt.Errorf("unknown ai tier %q", s)
	}
}

// cooldown is the pause between decisions. Harder tiers think more often.
func (t Tier) cooldown() float64 {
	switch t {
	case Medium:
		return mediumCooldown
	case Hard:
		return hardCooldown
	default:
		return easyCooldown
	}
}

// Snapshot is the read-only view of the world a controller decides from.
// The engine assembles one per tick; controllers never reach past it.
type Snapshot struct {
	Map *city.Map

	Pos           city.Coord
	Stamina       float64
	MaxStamina    float64
	CarriedWeight float64
	MaxWeight     float64

	Available []jobs.Job // released and open, in dispatch priority order
	Carried   []jobs.Job // accepted or picked up by the courier

	SpeedMult   float64
	StaminaMult float64
	Weather     weather.State

	Elapsed float64
	Dt      float64
}

// Intent is what a controller wants done this tick: optionally commit to a
// job, optionally take one step. The engine applies both in that order.
type Intent struct {
	AcceptID string
	Step     city.Direction
	HasStep  bool
}

// Controller owns the decision loop for one courier.
type Controller struct {
	tier Tier
	rng  *entropy.Source
	mem  memory
}

// New builds a controller of the given tier. The entropy source feeds the
// Easy tier's random choices and wander targets.
func New(tier Tier, rng *entropy.Source) *Controller {
	return &Controller{tier: tier, rng: rng}
}

// Tier returns the controller's policy tier.
func (c *Controller) Tier() Tier { return c.tier }

// Reset clears the working memory. Called after a session restore: the
// cached plan and chase rebuild from the next snapshot.
func (c *Controller) Reset() { c.mem = memory{} }

// Decide returns the controller's intent for this tick. Decisions run on a
// per-tier cadence; off-cadence calls return an empty intent.
func (c *Controller) Decide(s *Snapshot) Intent {
	m := &c.mem
	m.cooldown -= s.Dt
	if m.cooldown > 0 {
		return Intent{}
	}
	m.cooldown = c.tier.cooldown()

	m.observe(s.Pos)
	if m.stuckTicks >= stuckLimit {
		c.forceWander(s)
	}

	var intent Intent
	target := c.resolveTarget(s)

	// Commit once standing at the chased job's pickup doorstep. The engine
	// accepts first, then auto-pickup fires on the same tick.
	if target != nil && target.Status == jobs.StatusAvailable &&
		city.Manhattan(s.Pos, target.Pickup) <= jobs.DoorstepRadius {
		intent.AcceptID = target.ID
	}

	goal, hasGoal := c.goalFor(s, target)
	if hasGoal && s.Pos == goal {
		// On the goal tile. The handoff is the engine's job; stand still.
		return intent
	}

	var (
		step city.Direction
		ok   bool
	)
	switch c.tier {
	case Hard:
		step, ok = c.hardStep(s, target, goal, hasGoal)
	case Medium:
		step, ok = c.mediumStep(s, target, goal, hasGoal)
	default:
		step, ok = c.easyStep(s, goal, hasGoal)
	}
	if ok {
		intent.Step = step
		intent.HasStep = true
	}
	return intent
}

// resolveTarget keeps the chase current: finished or timed-out targets are
// dropped, carried jobs take precedence over new ones, and an idle
// controller adopts the best open job its tier can see.
func (c *Controller) resolveTarget(s *Snapshot) *jobs.Job {
	m := &c.mem

	var target *jobs.Job
	if m.targetID != "" {
		if target = findJob(s.Carried, m.targetID); target == nil {
			target = findJob(s.Available, m.targetID)
		}
		switch {
		case target == nil:
			// Delivered, expired, or cancelled out from under us.
			m.dropTarget()
		case s.Elapsed-m.targetSince > targetTimeout:
			m.dropTarget()
			target = nil
		}
	}

	if target == nil && len(s.Carried) > 0 {
		// Finish what we are holding before chasing anything new.
		target = &s.Carried[0]
		c.adopt(s, target)
	}

	if target == nil && !m.hasWander {
		if chosen := c.chooseJob(s); chosen != nil {
			target = chosen
			c.adopt(s, target)
		}
	}

	if target != nil {
		st := stagePickup
		if target.Status == jobs.StatusPickedUp {
			st = stageDropoff
		}
		if st != m.targetStage {
			// The leg changed; the chase clock and route restart.
			m.targetStage = st
			m.targetSince = s.Elapsed
			m.dropPlan()
		}
	}

	if c.tier == Medium && target != nil {
		target = c.reevaluate(s, target)
	}
	return target
}

// adopt begins chasing a job.
func (c *Controller) adopt(s *Snapshot, j *jobs.Job) {
	m := &c.mem
	m.targetID = j.ID
	m.targetStage = stageNone // Set by the stage check in resolveTarget.
	m.targetSince = s.Elapsed
	m.dropPlan()
	if c.tier == Medium {
		m.reevalAt = s.Elapsed + reevalInterval
	}
}

// chooseJob picks the next job to chase from the open pool. Easy draws at
// random; Medium and Hard score every candidate and take the best.
func (c *Controller) chooseJob(s *Snapshot) *jobs.Job {
	var candidates []*jobs.Job
	for i := range s.Available {
		if j := &s.Available[i]; fits(s, j) {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	switch c.tier {
	case Medium:
		return bestBy(candidates, func(j *jobs.Job) float64 { return mediumJobScore(s, j) })
	case Hard:
		return bestBy(candidates, func(j *jobs.Job) float64 { return c.chainScore(s, j) })
	default:
		return candidates[c.rng.IntN(len(candidates))]
	}
}

// goalFor returns the tile the controller is heading to: the chased job's
// current endpoint, or the wander tile when idle.
func (c *Controller) goalFor(s *Snapshot, target *jobs.Job) (city.Coord, bool) {
	m := &c.mem
	if target != nil {
		if target.Status == jobs.StatusPickedUp {
			return target.Dropoff, true
		}
		return target.Pickup, true
	}
	if m.hasWander {
		if s.Pos == m.wander {
			m.hasWander = false
			return city.Coord{}, false
		}
		return m.wander, true
	}
	return city.Coord{}, false
}

// forceWander abandons the chase and heads somewhere new. Door tiles make
// good wander targets: always walkable and spread across the districts.
func (c *Controller) forceWander(s *Snapshot) {
	m := &c.mem
	m.dropTarget()
	m.stuckTicks = 0
	doors := s.Map.DoorTiles()
	if len(doors) == 0 {
		m.hasWander = false
		return
	}
	m.wander = doors[c.rng.IntN(len(doors))]
	m.hasWander = true
}

// fits reports whether the job's weight still fits on the courier.
func fits(s *Snapshot, j *jobs.Job) bool {
	return s.CarriedWeight+j.Weight <= s.MaxWeight
}

func findJob(list []jobs.Job, id string) *jobs.Job {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}

func bestBy(candidates []*jobs.Job, score func(*jobs.Job) float64) *jobs.Job {
	best := candidates[0]
	bestScore := score(best)
	for _, j := range candidates[1:] {
		if sc := score(j); sc > bestScore {
			bestScore = sc
			best = j
		}
	}
	return best
}
