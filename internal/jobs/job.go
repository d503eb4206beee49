// Package jobs provides the delivery job model and the registry that owns
// job lifecycle state. Jobs come from the remote feed or the generator;
// every transition goes through registry operations so ordering invariants
// hold no matter who drives the courier.
package jobs

import (
	"fmt"

	"github.com/talgya/courier-world/internal/city"
)

// Status is the lifecycle state of a job.
type Status uint8

const (
	StatusAvailable Status = iota
	StatusAccepted
	StatusPickedUp
	StatusDelivered
	StatusExpired
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusAccepted:
		return "accepted"
	case StatusPickedUp:
		return "picked_up"
	case StatusDelivered:
		return "delivered"
	case StatusExpired:
		return "expired"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status ends the job's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusExpired || s == StatusCancelled
}

// ParseStatus maps a feed/save name back to a Status.
func ParseStatus(name string) (Status, error) {
	for s := StatusAvailable; s <= StatusCancelled; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", name)
}

// MarshalText renders the status name, so saves and API payloads carry
// "picked_up" rather than a bare integer.
func (s Status) MarshalText() ([]byte, error) {
	if s > StatusCancelled {
		return nil, fmt.Errorf("unknown job status %d", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Job is a single delivery. Times are session-elapsed seconds; Priority 0 is
// the most urgent tier (2 the least).
type Job struct {
	ID        string     `json:"id"`
	Pickup    city.Coord `json:"pickup"`
	Dropoff   city.Coord `json:"dropoff"`
	Payout    float64    `json:"payout"`
	Weight    float64    `json:"weight"`
	Priority  int        `json:"priority"`
	ReleaseAt float64    `json:"release_at"`
	Deadline  float64    `json:"deadline"`
	Status    Status     `json:"status"`
}

// Released reports whether the job has been offered by session time now.
func (j *Job) Released(now float64) bool {
	return now >= j.ReleaseAt
}

// Delivery reports the outcome of a successful handoff, consumed by the
// courier layer when applying payout and reputation.
type Delivery struct {
	JobID     string
	Payout    float64
	ReleaseAt float64
	Deadline  float64
	Now       float64
}

// Expired reports one job the expiration sweep retired. WasCarried marks
// jobs that were accepted or picked up, which cost reputation.
type Expired struct {
	JobID      string
	WasCarried bool
}
