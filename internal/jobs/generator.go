// Job generation: a random job board rolled on a city's doorstep tiles.
// Used by mapgen for offline feeds and by tests needing populated sessions.
package jobs

import (
	"fmt"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/entropy"
)

// Generator creates jobs with feed-compatible shapes.
type Generator struct {
	rng  *entropy.Source
	next int
}

// NewGenerator creates a job generator drawing from the given source.
func NewGenerator(rng *entropy.Source) *Generator {
	return &Generator{rng: rng, next: 1}
}

// Generate produces n jobs with endpoints on distinct doorstep tiles.
// Payouts run 120-400, weights 1-3, priorities 0-2, deadlines 180-420
// seconds out. Roughly a third are released immediately, the rest stagger
// across the first five minutes.
func (g *Generator) Generate(m *city.Map, n int, now float64) ([]*Job, error) {
	doors := m.DoorTiles()
	if len(doors) < 2 {
		return nil, fmt.Errorf("map %s has %d doorstep tiles, need at least 2", m.Name, len(doors))
	}

	jobs := make([]*Job, 0, n)
	for i := 0; i < n; i++ {
		pickup := doors[g.rng.IntN(len(doors))]
		dropoff := doors[g.rng.IntN(len(doors))]
		for tries := 0; city.Manhattan(pickup, dropoff) < 4 && tries < 16; tries++ {
			dropoff = doors[g.rng.IntN(len(doors))]
		}
		if pickup == dropoff {
			continue
		}

		release := now
		if i >= n/3 {
			release = now + g.rng.Range(20, 300)
		}

		jobs = append(jobs, &Job{
			ID:        fmt.Sprintf("PKG-%03d", g.next),
			Pickup:    pickup,
			Dropoff:   dropoff,
			Payout:    float64(g.rng.IntRange(120, 400)),
			Weight:    float64(g.rng.IntRange(1, 3)),
			Priority:  g.rng.IntN(3),
			ReleaseAt: release,
			Deadline:  release + g.rng.Range(180, 420),
			Status:    StatusAvailable,
		})
		g.next++
	}

	return jobs, nil
}
