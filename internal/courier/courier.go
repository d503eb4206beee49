// Package courier provides the dynamic actor state: position, stamina,
// money, reputation, and the carried-job inventory. All mutation goes
// through the operations here; decision layers only ever read it.
package courier

import (
	"errors"
	"fmt"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
)

var (
	ErrOutOfBounds = errors.New("out of bounds")
	ErrBlocked     = errors.New("tile blocked")
	ErrExhausted   = errors.New("stamina exhausted")
)

// Params are the fixed physical constants of a courier, set at session start.
type Params struct {
	BaseSpeed      float64 `json:"base_speed"`       // Tiles per second in clear weather, unloaded
	MaxStamina     float64 `json:"max_stamina"`
	MaxWeight      float64 `json:"max_weight"`       // Carry capacity
	LowStaminaFrac float64 `json:"low_stamina_frac"` // Fraction below which the courier is winded
}

// DefaultParams returns the standard courier build.
func DefaultParams() Params {
	return Params{
		BaseSpeed:      3.0,
		MaxStamina:     100,
		MaxWeight:      10,
		LowStaminaFrac: 0.30,
	}
}

// State is the courier. Owned exclusively by the simulation loop.
type State struct {
	Params     Params     `json:"params"`
	Pos        city.Coord `json:"pos"`
	Stamina    float64    `json:"stamina"`
	Money      float64    `json:"money"`
	Reputation float64    `json:"reputation"`
	Elapsed    float64    `json:"elapsed"`

	Inventory Inventory `json:"inventory"`

	// Reputation bookkeeping: consecutive clean deliveries, and whether
	// the one-time late-delivery forgiveness has been spent.
	CleanStreak  int  `json:"clean_streak"`
	LateForgiven bool `json:"late_forgiven"`
}

// NewState places a fresh courier at start with full stamina and the
// standard starting reputation of 70.
func NewState(p Params, start city.Coord) *State {
	return &State{
		Params:     p,
		Pos:        start,
		Stamina:    p.MaxStamina,
		Reputation: 70,
	}
}

// Clone returns a deep copy, for undo records and snapshots.
func (s *State) Clone() State {
	c := *s
	c.Inventory = s.Inventory.clone()
	return c
}

// loadFactor is the stamina surcharge for heavy loads: free up to 3 weight,
// then 20% more drain per extra unit.
func loadFactor(carriedWeight float64) float64 {
	excess := carriedWeight - 3
	if excess < 0 {
		excess = 0
	}
	return 1 + 0.2*excess
}

// MoveCost returns the stamina price of entering the tile at dest.
func (s *State) MoveCost(m *city.Map, dest city.Coord, staminaMult, carriedWeight float64) (float64, error) {
	w, err := m.SurfaceWeight(dest)
	if err != nil {
		return 0, err
	}
	return w * staminaMult * loadFactor(carriedWeight), nil
}

// Move steps one tile in the given direction. It fails with ErrOutOfBounds
// or ErrBlocked before any mutation, and with ErrExhausted when the courier
// has no stamina left to spend. A successful move floors stamina at zero;
// hitting zero is the session's terminal loss, checked by the loop.
func (s *State) Move(m *city.Map, dir city.Direction, staminaMult, carriedWeight float64) error {
	dest := city.Step(s.Pos, dir)
	if !m.InBounds(dest) {
		return fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, dest.X, dest.Y)
	}
	if !m.IsWalkable(dest) {
		return fmt.Errorf("%w: (%d,%d)", ErrBlocked, dest.X, dest.Y)
	}
	if s.Stamina <= 0 {
		return ErrExhausted
	}

	cost, err := s.MoveCost(m, dest, staminaMult, carriedWeight)
	if err != nil {
		return err
	}

	s.Pos = dest
	s.Stamina -= cost
	if s.Stamina < 0 {
		s.Stamina = 0
	}
	return nil
}

// Speed returns the courier's current pace in tiles per second: base speed
// scaled by weather, load, standing, and fatigue.
func (s *State) Speed(speedMult, carriedWeight float64) float64 {
	weight := 1 - 0.03*carriedWeight
	if weight < 0.8 {
		weight = 0.8
	}

	rep := 1.0
	if s.Reputation >= repBonusThreshold {
		rep = 1.03
	}

	fatigue := 1.0
	switch {
	case s.Stamina <= 0:
		fatigue = 0
	case s.LowStamina():
		fatigue = 0.8
	}

	return s.Params.BaseSpeed * speedMult * weight * rep * fatigue
}

// LowStamina reports whether the courier is winded.
func (s *State) LowStamina() bool {
	return s.Stamina < s.Params.LowStaminaFrac*s.Params.MaxStamina
}

// Exhausted reports the terminal out-of-stamina condition.
func (s *State) Exhausted() bool {
	return s.Stamina <= 0
}

// Defeated reports the terminal reputation collapse.
func (s *State) Defeated() bool {
	return s.Reputation < defeatThreshold
}

// DeliveryResult reports what a completed handoff did to the courier.
type DeliveryResult struct {
	Payout   float64 // Actual credit, including any standing bonus
	RepDelta float64
	LateBy   float64 // Seconds past deadline; <= 0 when punctual
}

// ApplyDelivery credits a completed delivery: payout (with the high-standing
// bonus), the punctuality reputation delta, and streak bookkeeping. The
// preconditions were already enforced by the job registry, so this never
// fails and the deltas land together.
func (s *State) ApplyDelivery(d jobs.Delivery) DeliveryResult {
	payout := d.Payout
	if s.Reputation >= repBonusThreshold {
		payout *= payoutBonus
	}

	delta := s.deliveryRepDelta(d)
	s.Money += payout
	s.applyRep(delta)

	// Three clean deliveries in a row earn a streak bonus.
	if delta >= 0 {
		s.CleanStreak++
		if s.CleanStreak >= cleanStreakLength {
			s.applyRep(repStreakBonus)
			delta += repStreakBonus
			s.CleanStreak = 0
		}
	}

	return DeliveryResult{Payout: payout, RepDelta: delta, LateBy: d.Now - d.Deadline}
}

// FinalScore is the session tally: total income, with the standing bonus
// on top when reputation finishes at 90 or better.
func (s *State) FinalScore() float64 {
	if s.Reputation >= repBonusThreshold {
		return s.Money * payoutBonus
	}
	return s.Money
}

// ApplyCancel charges the reputation cost of abandoning a job.
func (s *State) ApplyCancel() {
	s.applyRep(repCancel)
}

// ApplyExpiry charges the reputation cost of letting a carried job expire.
func (s *State) ApplyExpiry() {
	s.applyRep(repExpired)
}

// applyRep adds a reputation delta, clamps to [0, 100], and maintains the
// clean-delivery streak: penalties reset it.
func (s *State) applyRep(delta float64) {
	if delta < 0 {
		s.CleanStreak = 0
	}
	s.Reputation += delta
	if s.Reputation > 100 {
		s.Reputation = 100
	}
	if s.Reputation < 0 {
		s.Reputation = 0
	}
}
