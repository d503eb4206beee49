package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/courier-world/internal/ai"
	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/courier"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/route"
	"github.com/talgya/courier-world/internal/weather"
)

// calmWeather pins conditions to Clear for the whole test, so movement
// arithmetic has no multipliers in it.
func calmWeather() weather.Config {
	return weather.Config{
		States: map[weather.State]weather.Multipliers{
			weather.Clear: {Speed: 1, StaminaCost: 1},
		},
		Transitions: map[weather.State]map[weather.State]float64{
			weather.Clear: {weather.Clear: 1},
		},
		BaseDwell:          3600,
		TransitionDuration: 1,
		Initial:            weather.Clear,
	}
}

// gustyWeather flips a coin between Clear and Storm every second, to give
// determinism tests an entropy-hungry process.
func gustyWeather() weather.Config {
	return weather.Config{
		States: map[weather.State]weather.Multipliers{
			weather.Clear: {Speed: 1, StaminaCost: 1},
			weather.Storm: {Speed: 0.75, StaminaCost: 2},
		},
		Transitions: map[weather.State]map[weather.State]float64{
			weather.Clear: {weather.Clear: 0.5, weather.Storm: 0.5},
			weather.Storm: {weather.Storm: 0.5, weather.Clear: 0.5},
		},
		BaseDwell:          1,
		TransitionDuration: 0.5,
		Initial:            weather.Clear,
	}
}

func openGrid(t *testing.T, goal float64) *city.Map {
	t.Helper()
	m, err := city.FromGrid([]string{
		"CCC",
		"CCC",
		"CCC",
	}, city.DefaultLegend, goal, "open-grid")
	require.NoError(t, err)
	return m
}

// crossJob runs corner to corner: pickup (2,0), dropoff (2,2), payout 10.
func crossJob() *jobs.Job {
	return &jobs.Job{
		ID:       "PKG-100",
		Pickup:   city.Coord{X: 2, Y: 0},
		Dropoff:  city.Coord{X: 2, Y: 2},
		Payout:   10,
		Weight:   1,
		Deadline: 600,
	}
}

func startSession(t *testing.T, m *city.Map, list []*jobs.Job, opts Options) *Session {
	t.Helper()
	s, err := NewSession(m, calmWeather(), list, entropy.New(42), opts)
	require.NoError(t, err)
	return s
}

func TestNewSessionValidation(t *testing.T) {
	t.Run("nil map", func(t *testing.T) {
		_, err := NewSession(nil, calmWeather(), nil, entropy.New(1), Options{})
		assert.Error(t, err)
	})

	t.Run("unwalkable start", func(t *testing.T) {
		m, err := city.FromGrid([]string{"BCC", "CCC"}, city.DefaultLegend, 100, "corner-block")
		require.NoError(t, err)
		_, err = NewSession(m, calmWeather(), nil, entropy.New(1), Options{})
		assert.Error(t, err)
	})

	t.Run("duplicate job ids", func(t *testing.T) {
		_, err := NewSession(openGrid(t, 100), calmWeather(),
			[]*jobs.Job{crossJob(), crossJob()}, entropy.New(1), Options{})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{})
		assert.Equal(t, 100.0, s.Goal())
		assert.Equal(t, DefaultMaxDuration, s.maxDuration)
		assert.Equal(t, courier.DefaultUndoDepth, s.undo.Cap())
		assert.NotEmpty(t, s.ID())
	})

	t.Run("overrides win", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{Goal: 55, MaxDuration: 120, UndoDepth: 3})
		assert.Equal(t, 55.0, s.Goal())
		assert.Equal(t, 120.0, s.maxDuration)
		assert.Equal(t, 3, s.undo.Cap())
	})
}

func TestDefaultStart(t *testing.T) {
	t.Run("door tile preferred", func(t *testing.T) {
		m, err := city.FromGrid([]string{
			"CCC",
			"CBC",
			"CCC",
		}, city.DefaultLegend, 100, "one-block")
		require.NoError(t, err)
		start := DefaultStart(m)
		assert.True(t, m.IsWalkable(start))
		assert.Equal(t, 1, city.Manhattan(start, city.Coord{X: 1, Y: 1}))
	})

	t.Run("open map falls back to first walkable", func(t *testing.T) {
		assert.Equal(t, city.Coord{}, DefaultStart(openGrid(t, 100)))
	})
}

// Corner-to-corner on a 3x3 all-street grid under Clear skies: two steps
// to the pickup, two more to the dropoff, one stamina each, ten coins on
// the doorstep.
func TestCrossTownDelivery(t *testing.T) {
	m := openGrid(t, 100)
	job := crossJob()
	s := startSession(t, m, []*jobs.Job{job}, Options{})

	toPickup, err := route.Find(m, city.Coord{}, job.Pickup, route.Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Len(t, toPickup.Steps, 2)
	toDrop, err := route.Find(m, job.Pickup, job.Dropoff, route.Options{StaminaCost: 1})
	require.NoError(t, err)
	assert.Len(t, toDrop.Steps, 2)

	require.NoError(t, s.AcceptJob("PKG-100"))
	for _, dir := range []city.Direction{city.East, city.East, city.South, city.South} {
		require.NoError(t, s.MovePlayer(dir))
		s.Advance(0.5)
	}

	c := s.Courier()
	assert.Equal(t, city.Coord{X: 2, Y: 2}, c.Pos)
	assert.InDelta(t, 96.0, c.Stamina, 1e-9)
	assert.InDelta(t, 10.0, c.Money, 1e-9)
	assert.InDelta(t, 75.0, c.Reputation, 1e-9) // on-time and well early
	assert.Equal(t, 1, c.CleanStreak)
	assert.Zero(t, c.Inventory.Len())

	j, err := s.Registry().Get("PKG-100")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusDelivered, j.Status)
	assert.Equal(t, OutcomeOpen, s.Outcome())
}

func TestMovementPacing(t *testing.T) {
	s := startSession(t, openGrid(t, 100), nil, Options{})

	require.NoError(t, s.MovePlayer(city.East))
	assert.Equal(t, city.Coord{X: 1, Y: 0}, s.Courier().Pos)
	assert.Equal(t, 1, s.undo.Len())

	// Inside the pace window: the step is swallowed, nothing is charged,
	// no rewind point is spent.
	require.NoError(t, s.MovePlayer(city.East))
	assert.Equal(t, city.Coord{X: 1, Y: 0}, s.Courier().Pos)
	assert.InDelta(t, 99.0, s.Courier().Stamina, 1e-9)
	assert.Equal(t, 1, s.undo.Len())

	s.Advance(0.4)
	require.NoError(t, s.MovePlayer(city.East))
	assert.Equal(t, city.Coord{X: 2, Y: 0}, s.Courier().Pos)
	assert.Equal(t, 2, s.undo.Len())
}

func TestUndoPlayerActions(t *testing.T) {
	t.Run("movement rewinds", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{})
		require.NoError(t, s.MovePlayer(city.East))
		before := s.Elapsed()

		require.NoError(t, s.Undo())
		assert.Equal(t, city.Coord{}, s.Courier().Pos)
		assert.InDelta(t, 100.0, s.Courier().Stamina, 1e-9)
		assert.Equal(t, before, s.Elapsed()) // clock never rewinds
	})

	t.Run("delivery rewinds to carried", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), []*jobs.Job{crossJob()}, Options{})
		require.NoError(t, s.AcceptJob("PKG-100"))
		for _, dir := range []city.Direction{city.East, city.East, city.South} {
			require.NoError(t, s.MovePlayer(dir))
			s.Advance(0.5)
		}
		require.InDelta(t, 10.0, s.Courier().Money, 1e-9)

		require.NoError(t, s.Undo())
		c := s.Courier()
		assert.Equal(t, city.Coord{X: 2, Y: 0}, c.Pos)
		assert.Zero(t, c.Money)
		assert.True(t, c.Inventory.Contains("PKG-100"))
		j, err := s.Registry().Get("PKG-100")
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusPickedUp, j.Status)
	})

	t.Run("cancel rewinds", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), []*jobs.Job{crossJob()}, Options{})
		require.NoError(t, s.AcceptJob("PKG-100"))
		require.NoError(t, s.CancelJob("PKG-100"))
		require.InDelta(t, 66.0, s.Courier().Reputation, 1e-9)

		require.NoError(t, s.Undo())
		assert.InDelta(t, 70.0, s.Courier().Reputation, 1e-9)
		assert.True(t, s.Courier().Inventory.Contains("PKG-100"))
		j, err := s.Registry().Get("PKG-100")
		require.NoError(t, err)
		assert.Equal(t, jobs.StatusAccepted, j.Status)
	})

	t.Run("empty history", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{})
		assert.ErrorIs(t, s.Undo(), courier.ErrEmptyHistory)
	})
}

func TestExpirySweep(t *testing.T) {
	carried := &jobs.Job{ID: "PKG-A", Pickup: city.Coord{X: 2}, Dropoff: city.Coord{X: 2, Y: 2}, Payout: 10, Weight: 1, Deadline: 5}
	idle := &jobs.Job{ID: "PKG-B", Pickup: city.Coord{Y: 2}, Dropoff: city.Coord{X: 2, Y: 2}, Payout: 5, Weight: 1, Deadline: 8}
	s := startSession(t, openGrid(t, 100), []*jobs.Job{carried, idle}, Options{})
	require.NoError(t, s.AcceptJob("PKG-A"))

	s.Advance(6) // past A's deadline, before B's
	ja, err := s.Registry().Get("PKG-A")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusExpired, ja.Status)
	assert.InDelta(t, 64.0, s.Courier().Reputation, 1e-9) // carried expiry bites
	assert.Zero(t, s.Courier().Inventory.Len())
	jb, err := s.Registry().Get("PKG-B")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusAvailable, jb.Status)

	s.Advance(3)
	assert.Equal(t, jobs.StatusExpired, jb.Status)
	assert.InDelta(t, 64.0, s.Courier().Reputation, 1e-9) // unclaimed costs nothing

	recent := s.RecentEvents(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "PKG-B expired unclaimed", recent[0].Description)
}

func TestEndConditions(t *testing.T) {
	t.Run("victory on reaching the goal", func(t *testing.T) {
		s := startSession(t, openGrid(t, 10), []*jobs.Job{crossJob()}, Options{})
		require.NoError(t, s.AcceptJob("PKG-100"))
		for _, dir := range []city.Direction{city.East, city.East, city.South} {
			require.NoError(t, s.MovePlayer(dir))
			s.Advance(0.5)
		}
		assert.Equal(t, OutcomeVictory, s.Outcome())

		// Inputs and the clock are frozen past the end.
		assert.ErrorIs(t, s.MovePlayer(city.South), ErrSessionOver)
		assert.ErrorIs(t, s.AcceptJob("PKG-100"), ErrSessionOver)
		assert.ErrorIs(t, s.Undo(), ErrSessionOver)
		tick := s.CurrentTick()
		s.Advance(0.5)
		assert.Equal(t, tick, s.CurrentTick())

		sc := s.FinalScore()
		assert.Equal(t, "victory", sc.Outcome)
		assert.InDelta(t, 10.0, sc.Score, 1e-9)
		assert.InDelta(t, 10.0, sc.Income, 1e-9)
	})

	t.Run("reputation collapse", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), []*jobs.Job{crossJob()}, Options{})
		require.NoError(t, s.AcceptJob("PKG-100"))
		s.courier.Reputation = 22
		require.NoError(t, s.CancelJob("PKG-100"))
		assert.Equal(t, OutcomeDefeatReputation, s.Outcome())
	})

	t.Run("exhaustion", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{})
		s.courier.Stamina = 0.5
		require.NoError(t, s.MovePlayer(city.East))
		assert.Equal(t, OutcomeDefeatStamina, s.Outcome())
	})

	t.Run("timeout", func(t *testing.T) {
		s := startSession(t, openGrid(t, 100), nil, Options{MaxDuration: 30})
		s.Advance(31)
		assert.Equal(t, OutcomeDefeatTimeout, s.Outcome())
	})

	t.Run("victory outranks exhaustion", func(t *testing.T) {
		s := startSession(t, openGrid(t, 10), []*jobs.Job{crossJob()}, Options{})
		require.NoError(t, s.AcceptJob("PKG-100"))
		s.courier.Stamina = 3
		for _, dir := range []city.Direction{city.East, city.East, city.South} {
			require.NoError(t, s.MovePlayer(dir))
			s.Advance(0.5)
		}
		assert.Zero(t, s.Courier().Stamina)
		assert.Equal(t, OutcomeVictory, s.Outcome())
	})
}

// A lone reachable job on an open grid: the easy autopilot walks straight
// at it, one tile per decision, and stands on the pickup after exactly
// its Manhattan distance in ticks.
func TestEasyAutopilotPickupWithinManhattanTicks(t *testing.T) {
	job := crossJob()
	ctrl := ai.New(ai.Easy, entropy.New(7))
	s, err := NewSession(openGrid(t, 100), calmWeather(), []*jobs.Job{job}, entropy.New(42), Options{Controller: ctrl})
	require.NoError(t, err)

	dist := city.Manhattan(city.Coord{}, job.Pickup)
	for i := 0; i < dist; i++ {
		s.Advance(0.5)
	}
	assert.Equal(t, job.Pickup, s.Courier().Pos)

	j, err := s.Registry().Get("PKG-100")
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusPickedUp, j.Status)

	s.Advance(0.5) // one more step reaches the dropoff doorstep
	assert.InDelta(t, 10.0, s.Courier().Money, 1e-9)
}

func TestAutopilotTiersDeliver(t *testing.T) {
	for _, tier := range []ai.Tier{ai.Easy, ai.Medium, ai.Hard} {
		t.Run(tier.String(), func(t *testing.T) {
			ctrl := ai.New(tier, entropy.New(11))
			s, err := NewSession(openGrid(t, 100), calmWeather(), []*jobs.Job{crossJob()}, entropy.New(42), Options{Controller: ctrl})
			require.NoError(t, err)

			for i := 0; i < 12 && s.Courier().Money == 0; i++ {
				s.Advance(0.5)
			}
			assert.InDelta(t, 10.0, s.Courier().Money, 1e-9)
		})
	}
}

// A wall splits the grid, so the straight line to the job is blocked and
// the only way around is the long way through the east gap.
func TestHardRoutesAroundWalls(t *testing.T) {
	m, err := city.FromGrid([]string{
		"CCCCC",
		"BBBBC",
		"CCCCC",
	}, city.DefaultLegend, 100, "walled")
	require.NoError(t, err)
	job := &jobs.Job{
		ID:       "PKG-200",
		Pickup:   city.Coord{Y: 2},
		Dropoff:  city.Coord{X: 4, Y: 2},
		Payout:   25,
		Weight:   1,
		Deadline: 600,
	}

	ctrl := ai.New(ai.Hard, entropy.New(3))
	s, err := NewSession(m, calmWeather(), []*jobs.Job{job}, entropy.New(9), Options{Controller: ctrl})
	require.NoError(t, err)

	for i := 0; i < 60 && s.Courier().Money == 0; i++ {
		s.Advance(0.5)
	}
	assert.InDelta(t, 25.0, s.Courier().Money, 1e-9)
}

func TestSnapshotRestore(t *testing.T) {
	s := startSession(t, openGrid(t, 100), []*jobs.Job{crossJob()}, Options{})
	require.NoError(t, s.AcceptJob("PKG-100"))
	require.NoError(t, s.MovePlayer(city.East))
	s.Advance(0.5)
	require.NoError(t, s.MovePlayer(city.East))
	s.Advance(0.25) // leave a half-spent pace window in the save

	snap, err := s.Snapshot()
	require.NoError(t, err)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	raw2, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(raw2))

	restored, err := Resume(decoded, nil)
	require.NoError(t, err)
	want, err := json.Marshal(s.View())
	require.NoError(t, err)
	got, err := json.Marshal(restored.View())
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))
}

// Two sessions resumed from one save under entropy-hungry weather must
// walk the same path forever.
func TestResumeDeterminism(t *testing.T) {
	s, err := NewSession(openGrid(t, 100), gustyWeather(), []*jobs.Job{crossJob()}, entropy.New(5), Options{})
	require.NoError(t, err)
	s.Advance(2.5)

	snap, err := s.Snapshot()
	require.NoError(t, err)

	a, err := Resume(snap, nil)
	require.NoError(t, err)
	b, err := Resume(snap, nil)
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		a.Advance(0.5)
		b.Advance(0.5)
	}
	va, err := json.Marshal(a.View())
	require.NoError(t, err)
	vb, err := json.Marshal(b.View())
	require.NoError(t, err)
	assert.JSONEq(t, string(va), string(vb))
}

func TestEventsRing(t *testing.T) {
	s := startSession(t, openGrid(t, 100), nil, Options{})
	for i := 0; i < maxEvents+50; i++ {
		s.record("job", fmt.Sprintf("evt %d", i))
	}
	assert.Len(t, s.Events(), maxEvents)

	recent := s.RecentEvents(3)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("evt %d", maxEvents+49), recent[2].Description)
}

func TestInventoryThroughSession(t *testing.T) {
	small := &jobs.Job{ID: "PKG-S", Pickup: city.Coord{X: 2}, Dropoff: city.Coord{X: 2, Y: 2}, Payout: 5, Weight: 1, Deadline: 600}
	big := &jobs.Job{ID: "PKG-B", Pickup: city.Coord{Y: 2}, Dropoff: city.Coord{X: 2, Y: 2}, Payout: 50, Weight: 1, Deadline: 500}
	s := startSession(t, openGrid(t, 100), []*jobs.Job{small, big}, Options{})
	require.NoError(t, s.AcceptJob("PKG-S"))
	require.NoError(t, s.AcceptJob("PKG-B"))

	s.SortInventory(courier.SortPayout)
	v := s.View()
	require.Len(t, v.Carried, 2)
	assert.Equal(t, "PKG-B", v.Carried[0].ID)
	assert.Equal(t, "payout", v.InventoryMode)

	// Focus rides with the job it was on, not with the slot.
	assert.Equal(t, "PKG-S", v.Focused)
	s.FocusNext()
	focused, ok := s.Courier().Inventory.Focused()
	require.True(t, ok)
	assert.Equal(t, "PKG-B", focused)
}
