package jobs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/talgya/courier-world/internal/city"
)

// Doorstep rule: standing on or immediately beside the tile counts as being
// at a pickup or dropoff.
const DoorstepRadius = 1

var (
	ErrNotFound         = errors.New("job not found")
	ErrAlreadyAccepted  = errors.New("job not available")
	ErrCapacityExceeded = errors.New("carry capacity exceeded")
	ErrNotAccepted      = errors.New("job not accepted")
	ErrNotCarried       = errors.New("job not carried")
	ErrNotAtPickup      = errors.New("not at pickup tile")
	ErrNotAtDropoff     = errors.New("not at dropoff tile")
	ErrExpired          = errors.New("job expired")
)

// Registry owns every job of a session and is the only writer of their
// lifecycle state. Owned by the simulation loop; not safe for concurrent use.
type Registry struct {
	byID  map[string]*Job
	order []*Job // Insertion order, for stable snapshots
}

// NewRegistry builds a registry from the session's job list. Duplicate IDs
// are a load error.
func NewRegistry(list []*Job) (*Registry, error) {
	r := &Registry{byID: make(map[string]*Job, len(list))}
	for _, j := range list {
		if j.ID == "" {
			return nil, fmt.Errorf("job with empty id")
		}
		if _, dup := r.byID[j.ID]; dup {
			return nil, fmt.Errorf("duplicate job id %s", j.ID)
		}
		r.byID[j.ID] = j
		r.order = append(r.order, j)
	}
	return r, nil
}

// Get returns the job with the given id, or ErrNotFound.
func (r *Registry) Get(id string) (*Job, error) {
	j, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j, nil
}

// sortByPriority orders by deadline ascending, payout descending, then ID,
// so every caller sees the same queue.
func sortByPriority(list []*Job) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Deadline != b.Deadline {
			return a.Deadline < b.Deadline
		}
		if a.Payout != b.Payout {
			return a.Payout > b.Payout
		}
		return a.ID < b.ID
	})
}

// Available returns the released, unexpired, still-available jobs in
// priority order.
func (r *Registry) Available(now float64) []*Job {
	var out []*Job
	for _, j := range r.order {
		if j.Status == StatusAvailable && j.Released(now) && now <= j.Deadline {
			out = append(out, j)
		}
	}
	sortByPriority(out)
	return out
}

// AvailableNear filters Available by Manhattan distance from pos.
func (r *Registry) AvailableNear(now float64, pos city.Coord, radius int) []*Job {
	var out []*Job
	for _, j := range r.Available(now) {
		if city.Manhattan(pos, j.Pickup) <= radius {
			out = append(out, j)
		}
	}
	return out
}

// Carried returns the accepted and picked-up jobs in insertion order.
func (r *Registry) Carried() []*Job {
	var out []*Job
	for _, j := range r.order {
		if j.Status == StatusAccepted || j.Status == StatusPickedUp {
			out = append(out, j)
		}
	}
	return out
}

// CarriedWeight sums the weight of accepted and picked-up jobs.
func (r *Registry) CarriedWeight() float64 {
	w := 0.0
	for _, j := range r.Carried() {
		w += j.Weight
	}
	return w
}

// Accept moves an available job to Accepted. Fails without side effects:
// ErrNotFound for unknown or unreleased jobs, ErrExpired past deadline,
// ErrAlreadyAccepted for any non-available status, ErrCapacityExceeded when
// the summed carried weight would pass maxWeight, and ErrAlreadyAccepted
// when another live job holds the same pickup/dropoff pairing.
func (r *Registry) Accept(id string, now, carriedWeight, maxWeight float64) error {
	j, err := r.Get(id)
	if err != nil {
		return err
	}
	if !j.Released(now) {
		return fmt.Errorf("%w: %s not yet released", ErrNotFound, id)
	}
	if j.Status != StatusAvailable {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyAccepted, id, j.Status)
	}
	if now > j.Deadline {
		// The sweep in ExpireDue owns the status flip.
		return fmt.Errorf("%w: %s", ErrExpired, id)
	}
	if carriedWeight+j.Weight > maxWeight {
		return fmt.Errorf("%w: %s needs %.1f, %.1f of %.1f in use",
			ErrCapacityExceeded, id, j.Weight, carriedWeight, maxWeight)
	}
	for _, other := range r.order {
		if other.ID == id || other.Status.Terminal() {
			continue
		}
		if (other.Status == StatusAccepted || other.Status == StatusPickedUp) &&
			other.Pickup == j.Pickup && other.Dropoff == j.Dropoff {
			return fmt.Errorf("%w: %s shares endpoints with %s", ErrAlreadyAccepted, id, other.ID)
		}
	}
	j.Status = StatusAccepted
	return nil
}

// PickUp moves an accepted job to PickedUp when the courier stands at its
// pickup doorstep.
func (r *Registry) PickUp(id string, pos city.Coord) error {
	j, err := r.Get(id)
	if err != nil {
		return err
	}
	if j.Status != StatusAccepted {
		return fmt.Errorf("%w: %s is %s", ErrNotAccepted, id, j.Status)
	}
	if city.Manhattan(pos, j.Pickup) > DoorstepRadius {
		return fmt.Errorf("%w: %s pickup at (%d,%d)", ErrNotAtPickup, id, j.Pickup.X, j.Pickup.Y)
	}
	j.Status = StatusPickedUp
	return nil
}

// Deliver completes a picked-up job at its dropoff doorstep and reports the
// outcome for payout and reputation handling.
func (r *Registry) Deliver(id string, pos city.Coord, now float64) (Delivery, error) {
	j, err := r.Get(id)
	if err != nil {
		return Delivery{}, err
	}
	if j.Status != StatusPickedUp {
		return Delivery{}, fmt.Errorf("%w: %s is %s", ErrNotCarried, id, j.Status)
	}
	if city.Manhattan(pos, j.Dropoff) > DoorstepRadius {
		return Delivery{}, fmt.Errorf("%w: %s dropoff at (%d,%d)", ErrNotAtDropoff, id, j.Dropoff.X, j.Dropoff.Y)
	}
	j.Status = StatusDelivered
	return Delivery{JobID: id, Payout: j.Payout, ReleaseAt: j.ReleaseAt, Deadline: j.Deadline, Now: now}, nil
}

// Cancel abandons an accepted or picked-up job permanently.
func (r *Registry) Cancel(id string) error {
	j, err := r.Get(id)
	if err != nil {
		return err
	}
	if j.Status != StatusAccepted && j.Status != StatusPickedUp {
		return fmt.Errorf("%w: %s is %s", ErrNotAccepted, id, j.Status)
	}
	j.Status = StatusCancelled
	return nil
}

// ExpireDue retires released jobs past their deadline and reports them,
// flagging the ones the courier was committed to.
func (r *Registry) ExpireDue(now float64) []Expired {
	var out []Expired
	for _, j := range r.order {
		if j.Status.Terminal() || !j.Released(now) || now <= j.Deadline {
			continue
		}
		carried := j.Status == StatusAccepted || j.Status == StatusPickedUp
		j.Status = StatusExpired
		out = append(out, Expired{JobID: j.ID, WasCarried: carried})
	}
	return out
}

// Jobs returns copies of every job in insertion order, for snapshots.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, j := range r.order {
		out = append(out, *j)
	}
	return out
}

// StatusMap captures the lifecycle state of every job, for undo records.
func (r *Registry) StatusMap() map[string]Status {
	m := make(map[string]Status, len(r.order))
	for _, j := range r.order {
		m[j.ID] = j.Status
	}
	return m
}

// RestoreStatuses rewinds job lifecycle states from an undo record.
func (r *Registry) RestoreStatuses(m map[string]Status) error {
	for id, s := range m {
		j, ok := r.byID[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		j.Status = s
	}
	return nil
}
