package weather

import (
	"errors"
	"fmt"

	"github.com/talgya/courier-world/internal/entropy"
)

// ErrNegativeStep is returned when Advance is called with a negative dt.
var ErrNegativeStep = errors.New("negative time step")

// Process is the running weather state machine. Owned by the simulation
// loop; never advanced concurrently.
type Process struct {
	cfg Config
	rng *entropy.Source

	current   State
	target    State
	hasTarget bool
	elapsed   float64 // Seconds into the active transition
	dwell     float64 // Seconds since the current state settled
	dwellNeed float64 // Seconds of dwell required before the next transition
	queue     []Burst
}

// NewProcess validates the configuration and starts the machine in its
// initial state with the burst schedule queued.
func NewProcess(cfg Config, rng *entropy.Source) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Process{
		cfg:       cfg,
		rng:       rng,
		current:   cfg.Initial,
		dwellNeed: cfg.dwellFor(cfg.Initial),
		queue:     append([]Burst(nil), cfg.Bursts...),
	}
	return p, nil
}

// Current returns the settled state (the old state while mid-transition).
func (p *Process) Current() State { return p.current }

// Target returns the incoming state and whether a transition is in flight.
func (p *Process) Target() (State, bool) { return p.target, p.hasTarget }

// QueueBurst appends a forced weather override to the FIFO queue.
func (p *Process) QueueBurst(b Burst) error {
	if _, ok := p.cfg.States[b.State]; !ok {
		return fmt.Errorf("burst targets unknown state %s", b.State)
	}
	if b.Duration <= 0 {
		return fmt.Errorf("burst duration %v must be positive", b.Duration)
	}
	p.queue = append(p.queue, b)
	return nil
}

// Advance moves the machine forward by dt seconds. dt of zero is a no-op.
// A transition in flight progresses first; once the dwell requirement of the
// settled state is met, the next queued burst fires, or failing that a
// successor is sampled from the transition row.
func (p *Process) Advance(dt float64) error {
	if dt < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeStep, dt)
	}
	if dt == 0 {
		return nil
	}

	if p.hasTarget {
		p.elapsed += dt
		if p.elapsed < p.cfg.TransitionDuration {
			return nil
		}
		// Transition complete; leftover time counts toward dwell.
		leftover := p.elapsed - p.cfg.TransitionDuration
		p.current = p.target
		p.hasTarget = false
		p.elapsed = 0
		p.dwell = leftover
	} else {
		p.dwell += dt
	}

	if p.dwell < p.dwellNeed {
		return nil
	}

	if len(p.queue) > 0 {
		b := p.queue[0]
		p.queue = p.queue[1:]
		p.begin(b.State, b.Duration)
		return nil
	}

	next := p.sample()
	if next == p.current {
		// Stayed put: restart the dwell clock.
		p.dwell = 0
		p.dwellNeed = p.cfg.dwellFor(p.current)
		return nil
	}
	p.begin(next, p.cfg.dwellFor(next))
	return nil
}

// begin starts a transition to state s whose settled dwell requirement is d.
func (p *Process) begin(s State, d float64) {
	if s == p.current {
		// Forced burst into the current state just pins it for d seconds.
		p.dwell = 0
		p.dwellNeed = d
		return
	}
	p.target = s
	p.hasTarget = true
	p.elapsed = 0
	p.dwell = 0
	p.dwellNeed = d
}

// sample draws a successor from the current state's row using cumulative
// probabilities, iterating states in enum order for determinism.
func (p *Process) sample() State {
	row := p.cfg.Transitions[p.current]
	roll := p.rng.Float64()
	acc := 0.0
	last := p.current
	for s := State(0); s < stateCount; s++ {
		prob, ok := row[s]
		if !ok || prob == 0 {
			continue
		}
		acc += prob
		last = s
		if roll < acc {
			return s
		}
	}
	// Row sums to 1 within tolerance; rounding can leave a sliver.
	return last
}

// progress returns the transition completion fraction in [0, 1].
func (p *Process) progress() float64 {
	if !p.hasTarget {
		return 1
	}
	t := p.elapsed / p.cfg.TransitionDuration
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// SpeedMultiplier returns the effective speed factor, interpolated while a
// transition is in flight.
func (p *Process) SpeedMultiplier() float64 {
	cur := p.cfg.States[p.current].Speed
	if !p.hasTarget {
		return cur
	}
	next := p.cfg.States[p.target].Speed
	return cur + (next-cur)*p.progress()
}

// StaminaCostMultiplier returns the effective stamina drain factor,
// interpolated while a transition is in flight.
func (p *Process) StaminaCostMultiplier() float64 {
	cur := p.cfg.States[p.current].StaminaCost
	if !p.hasTarget {
		return cur
	}
	next := p.cfg.States[p.target].StaminaCost
	return cur + (next-cur)*p.progress()
}

// Snapshot captures the full machine state for session persistence.
type Snapshot struct {
	Current   State   `json:"current"`
	Target    State   `json:"target"`
	HasTarget bool    `json:"has_target"`
	Elapsed   float64 `json:"elapsed"`
	Dwell     float64 `json:"dwell"`
	DwellNeed float64 `json:"dwell_need"`
	Queue     []Burst `json:"queue"`
}

// Snapshot returns the machine state. Restoring it resumes the process
// exactly, including pending bursts.
func (p *Process) Snapshot() Snapshot {
	return Snapshot{
		Current:   p.current,
		Target:    p.target,
		HasTarget: p.hasTarget,
		Elapsed:   p.elapsed,
		Dwell:     p.dwell,
		DwellNeed: p.dwellNeed,
		Queue:     append([]Burst(nil), p.queue...),
	}
}

// Restore replaces the machine state with a snapshot taken from a process
// with the same configuration.
func (p *Process) Restore(s Snapshot) error {
	if _, ok := p.cfg.States[s.Current]; !ok {
		return fmt.Errorf("snapshot state %s not in catalog", s.Current)
	}
	if s.HasTarget {
		if _, ok := p.cfg.States[s.Target]; !ok {
			return fmt.Errorf("snapshot target %s not in catalog", s.Target)
		}
	}
	p.current = s.Current
	p.target = s.Target
	p.hasTarget = s.HasTarget
	p.elapsed = s.Elapsed
	p.dwell = s.Dwell
	p.dwellNeed = s.DwellNeed
	p.queue = append([]Burst(nil), s.Queue...)
	return nil
}
