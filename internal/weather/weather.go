// Package weather provides the stochastic weather state machine that
// modulates courier speed and stamina drain. Transitions come from a Markov
// matrix, pre-empted by externally queued bursts, and effective multipliers
// interpolate linearly while a transition is in flight.
package weather

import (
	"errors"
	"fmt"
	"math"
)

// State enumerates the weather kinds the simulation understands.
type State uint8

const (
	Clear State = iota
	Clouds
	RainLight
	Rain
	Storm
	Fog
	Wind
	Heat
	Cold

	stateCount
)

var stateNames = [stateCount]string{
	"clear", "clouds", "rain_light", "rain", "storm", "fog", "wind", "heat", "cold",
}

func (s State) String() string {
	if s < stateCount {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState maps a feed/config name to a State.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weather state %q", name)
}

// MarshalText renders the state name, so JSON maps key by name rather than
// by raw integer.
func (s State) MarshalText() ([]byte, error) {
	if s >= stateCount {
		return nil, fmt.Errorf("unknown weather state %d", s)
	}
	return []byte(stateNames[s]), nil
}

func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Multipliers are the movement effects of a weather state. Speed scales
// courier velocity; StaminaCost scales the stamina drained per tile.
type Multipliers struct {
	Speed       float64 `json:"speed"`
	StaminaCost float64 `json:"stamina_cost"`
}

// Burst is a forced weather override: the process transitions to State and
// holds it for Duration seconds before resuming normal sampling.
type Burst struct {
	State    State   `json:"state"`
	Duration float64 `json:"duration"`
}

// Config fully describes a weather process. Immutable once validated.
type Config struct {
	States             map[State]Multipliers       `json:"states"`
	Transitions        map[State]map[State]float64 `json:"transitions"`
	BaseDwell          float64                     `json:"base_dwell"` // Minimum seconds in a state before sampling
	Dwell              map[State]float64           `json:"dwell,omitempty"`
	TransitionDuration float64                     `json:"transition_duration"` // Seconds a transition takes to complete
	Initial            State                       `json:"initial"`
	Bursts             []Burst                     `json:"bursts,omitempty"` // Initial schedule, served FIFO
}

const rowSumTolerance = 1e-6

// ErrBadConfig marks a malformed weather configuration, fatal at load.
var ErrBadConfig = errors.New("invalid weather config")

// Validate rejects malformed configurations: unknown states, non-positive
// multipliers or durations, and transition rows that do not sum to one.
// Violations are programming or data errors and must fail before simulation.
func (c Config) Validate() error {
	if len(c.States) == 0 {
		return fmt.Errorf("%w: no states", ErrBadConfig)
	}
	if _, ok := c.States[c.Initial]; !ok {
		return fmt.Errorf("%w: initial state %s not in catalog", ErrBadConfig, c.Initial)
	}
	if c.TransitionDuration <= 0 {
		return fmt.Errorf("%w: transition duration %v must be positive", ErrBadConfig, c.TransitionDuration)
	}
	if c.BaseDwell < 0 {
		return fmt.Errorf("%w: negative base dwell %v", ErrBadConfig, c.BaseDwell)
	}

	for s, m := range c.States {
		if s >= stateCount {
			return fmt.Errorf("%w: state %d out of range", ErrBadConfig, s)
		}
		if m.Speed <= 0 || m.StaminaCost <= 0 {
			return fmt.Errorf("%w: state %s has non-positive multipliers %+v", ErrBadConfig, s, m)
		}
	}

	for s := range c.States {
		row, ok := c.Transitions[s]
		if !ok {
			return fmt.Errorf("%w: state %s has no transition row", ErrBadConfig, s)
		}
		sum := 0.0
		for to, p := range row {
			if _, known := c.States[to]; !known {
				return fmt.Errorf("%w: row %s targets unknown state %s", ErrBadConfig, s, to)
			}
			if p < 0 {
				return fmt.Errorf("%w: row %s has negative probability for %s", ErrBadConfig, s, to)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > rowSumTolerance {
			return fmt.Errorf("%w: row %s sums to %v, want 1", ErrBadConfig, s, sum)
		}
	}

	for s, d := range c.Dwell {
		if _, known := c.States[s]; !known {
			return fmt.Errorf("%w: dwell override for unknown state %s", ErrBadConfig, s)
		}
		if d < 0 {
			return fmt.Errorf("%w: negative dwell for %s", ErrBadConfig, s)
		}
	}

	for i, b := range c.Bursts {
		if _, known := c.States[b.State]; !known {
			return fmt.Errorf("%w: burst %d targets unknown state %s", ErrBadConfig, i, b.State)
		}
		if b.Duration <= 0 {
			return fmt.Errorf("%w: burst %d has non-positive duration %v", ErrBadConfig, i, b.Duration)
		}
	}

	return nil
}

// dwellFor returns the minimum dwell for a state.
func (c Config) dwellFor(s State) float64 {
	if d, ok := c.Dwell[s]; ok {
		return d
	}
	return c.BaseDwell
}

// DefaultConfig returns the standard nine-state catalog with a self-dominant
// transition matrix. Speed drops and stamina drain rises as conditions worsen.
func DefaultConfig() Config {
	return Config{
		States: map[State]Multipliers{
			Clear:     {Speed: 1.00, StaminaCost: 1.00},
			Clouds:    {Speed: 0.98, StaminaCost: 1.00},
			RainLight: {Speed: 0.90, StaminaCost: 1.10},
			Rain:      {Speed: 0.85, StaminaCost: 1.10},
			Storm:     {Speed: 0.75, StaminaCost: 1.30},
			Fog:       {Speed: 0.88, StaminaCost: 1.00},
			Wind:      {Speed: 0.92, StaminaCost: 1.05},
			Heat:      {Speed: 0.90, StaminaCost: 1.20},
			Cold:      {Speed: 0.92, StaminaCost: 1.00},
		},
		Transitions: map[State]map[State]float64{
			Clear:     {Clear: 0.45, Clouds: 0.35, RainLight: 0.10, Heat: 0.05, Cold: 0.05},
			Clouds:    {Clouds: 0.35, Clear: 0.25, RainLight: 0.20, Fog: 0.10, Wind: 0.10},
			RainLight: {RainLight: 0.35, Rain: 0.25, Clouds: 0.30, Clear: 0.10},
			Rain:      {Rain: 0.40, RainLight: 0.25, Storm: 0.20, Clouds: 0.15},
			Storm:     {Storm: 0.35, Rain: 0.40, RainLight: 0.15, Clouds: 0.10},
			Fog:       {Fog: 0.40, Clouds: 0.35, Clear: 0.15, RainLight: 0.10},
			Wind:      {Wind: 0.40, Clouds: 0.30, Clear: 0.20, RainLight: 0.10},
			Heat:      {Heat: 0.45, Clear: 0.30, Clouds: 0.20, Wind: 0.05},
			Cold:      {Cold: 0.45, Clouds: 0.30, Clear: 0.15, Fog: 0.10},
		},
		BaseDwell:          45,
		TransitionDuration: 4,
		Initial:            Clear,
	}
}
