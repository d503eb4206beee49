// Reputation rules: punctuality deltas, the clean-delivery streak, and the
// one-time forgiveness high-standing couriers get for their first slip.
package courier

import "github.com/talgya/courier-world/internal/jobs"

const (
	repEarly      = 5.0  // Delivered with at least 20% of the window to spare
	repOnTime     = 3.0  // Delivered before the deadline
	repLateMinor  = -2.0 // Up to 30s late
	repLateMedium = -5.0 // Up to 120s late
	repLateMajor  = -10.0
	repCancel     = -4.0
	repExpired    = -6.0 // A carried job timed out

	repStreakBonus    = 2.0
	cleanStreakLength = 3

	// Standing thresholds.
	defeatThreshold   = 20.0 // Below this the session is lost
	repBonusThreshold = 90.0 // At or above: faster pace and richer payouts
	forgiveThreshold  = 85.0 // First late delivery is half-charged
	payoutBonus       = 1.05

	earlyWindowFrac = 0.20
	lateMinorLimit  = 30.0
	lateMediumLimit = 120.0
)

// deliveryRepDelta scores the punctuality of one delivery. A courier at or
// above the forgiveness threshold has their first late delivery half-charged.
func (s *State) deliveryRepDelta(d jobs.Delivery) float64 {
	lateBy := d.Now - d.Deadline
	if lateBy <= 0 {
		window := d.Deadline - d.ReleaseAt
		if window > 0 && -lateBy >= earlyWindowFrac*window {
			return repEarly
		}
		return repOnTime
	}

	var penalty float64
	switch {
	case lateBy <= lateMinorLimit:
		penalty = repLateMinor
	case lateBy <= lateMediumLimit:
		penalty = repLateMedium
	default:
		penalty = repLateMajor
	}

	if !s.LateForgiven && s.Reputation >= forgiveThreshold {
		s.LateForgiven = true
		switch penalty {
		case repLateMinor:
			penalty = -1
		case repLateMedium:
			penalty = -3
		default:
			penalty = -5
		}
	}
	return penalty
}
