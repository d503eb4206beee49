package ai

import (
	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/route"
	"github.com/talgya/courier-world/internal/weather"
)

const (
	// recentCap bounds the ring of recently visited tiles used for loop
	// avoidance.
	recentCap = 6

	// targetTimeout is how long a controller chases one job before giving
	// up on it, in session seconds. The clock restarts at pickup.
	targetTimeout = 15.0

	// stuckLimit is how many consecutive decisions may pass without
	// positional progress before the controller forces a wander target.
	stuckLimit = 8

	easyCooldown   = 0.35
	mediumCooldown = 0.22
	hardCooldown   = 0.16
)

// stage marks which endpoint of the chased job the controller is heading
// for. It is inferred from the job's observed status each decision.
type stage uint8

const (
	stageNone stage = iota
	stagePickup
	stageDropoff
)

// memory is a controller's working state between decisions: the chase, the
// cached route, and enough movement history to avoid tight loops. None of
// it is authoritative; everything rebuilds from the next snapshot.
type memory struct {
	cooldown float64

	targetID    string
	targetStage stage
	targetSince float64 // session time the current chase (or leg) started

	plan        route.Plan
	planValid   bool
	planIndex   int
	planWeather weather.State
	planWinded  bool

	prev    city.Coord // tile occupied before the last move
	hasPrev bool
	recent  []city.Coord

	lastPos    city.Coord
	hasLastPos bool
	stuckTicks int

	wander    city.Coord // fallback destination when idle or stuck
	hasWander bool

	reevalAt float64
}

// observe updates the movement bookkeeping from the position the engine
// reports. Standing still accumulates stuck ticks; moving records the tile
// we came from and feeds the recent ring.
func (m *memory) observe(pos city.Coord) {
	if !m.hasLastPos {
		m.lastPos = pos
		m.hasLastPos = true
		m.pushRecent(pos)
		return
	}
	if pos == m.lastPos {
		m.stuckTicks++
		return
	}
	m.prev = m.lastPos
	m.hasPrev = true
	m.lastPos = pos
	m.stuckTicks = 0
	m.pushRecent(pos)
}

func (m *memory) pushRecent(c city.Coord) {
	m.recent = append(m.recent, c)
	if len(m.recent) > recentCap {
		m.recent = m.recent[1:]
	}
}

func (m *memory) recentlyVisited(c city.Coord) bool {
	for _, r := range m.recent {
		if r == c {
			return true
		}
	}
	return false
}

func (m *memory) dropTarget() {
	m.targetID = ""
	m.targetStage = stageNone
	m.targetSince = 0
	m.dropPlan()
}

func (m *memory) dropPlan() {
	m.planValid = false
	m.planIndex = 0
}
