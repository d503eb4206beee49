package engine

import (
	"errors"
	"log/slog"

	"github.com/talgya/courier-world/internal/ai"
	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/courier"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

// Snapshot captures a complete session between steps. It carries the map
// and configs too, so a save file resumes standalone without refetching
// the city feed.
type Snapshot struct {
	ID          string           `json:"id"`
	Tick        uint64           `json:"tick"`
	Elapsed     float64          `json:"elapsed"`
	MoveWait    float64          `json:"move_wait"`
	Outcome     Outcome          `json:"outcome"`
	Goal        float64          `json:"goal"`
	MaxDuration float64          `json:"max_duration"`
	Map         *city.Map        `json:"map"`
	WeatherCfg  weather.Config   `json:"weather_config"`
	Weather     weather.Snapshot `json:"weather"`
	Courier     courier.State    `json:"courier"`
	Jobs        []jobs.Job       `json:"jobs"`
	Entropy     []byte           `json:"entropy"`
	UndoDepth   int              `json:"undo_depth"`
	Undo        []courier.Record `json:"undo"`
	Events      []Event          `json:"events"`
}

// Snapshot captures the session. Call it between Advance steps only.
func (s *Session) Snapshot() (Snapshot, error) {
	ent, err := s.rng.State()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		ID:          s.id,
		Tick:        s.tick,
		Elapsed:     s.elapsed,
		MoveWait:    s.moveWait,
		Outcome:     s.outcome,
		Goal:        s.goal,
		MaxDuration: s.maxDuration,
		Map:         s.m,
		WeatherCfg:  s.wcfg,
		Weather:     s.weather.Snapshot(),
		Courier:     s.courier.Clone(),
		Jobs:        s.registry.Jobs(),
		Entropy:     ent,
		UndoDepth:   s.undo.Cap(),
		Undo:        s.undo.Records(),
		Events:      s.Events(),
	}, nil
}

// Restore replaces the session's state with the snapshot's. Everything
// fallible happens before the first mutation, so a bad snapshot leaves
// the session untouched. The autopilot's working memory is cleared; it
// rebuilds within one decision.
func (s *Session) Restore(snap Snapshot) error {
	if snap.Map == nil {
		return errors.New("engine: snapshot has no map")
	}
	reg, err := jobs.NewRegistry(jobPtrs(snap.Jobs))
	if err != nil {
		return err
	}
	proc, err := weather.NewProcess(snap.WeatherCfg, s.rng)
	if err != nil {
		return err
	}
	if err := proc.Restore(snap.Weather); err != nil {
		return err
	}
	if err := s.rng.SetState(snap.Entropy); err != nil {
		return err
	}

	st := snap.Courier.Clone()
	s.id = snap.ID
	s.m = snap.Map
	s.wcfg = snap.WeatherCfg
	s.weather = proc
	s.registry = reg
	*s.courier = st
	s.undo = courier.NewHistory(snap.UndoDepth)
	s.undo.SetRecords(snap.Undo)
	s.goal = snap.Goal
	s.maxDuration = snap.MaxDuration
	s.tick = snap.Tick
	s.elapsed = snap.Elapsed
	s.moveWait = snap.MoveWait
	s.outcome = snap.Outcome
	s.lastWeather = proc.Current()
	s.events = append(s.events[:0], snap.Events...)
	if s.ctrl != nil {
		s.ctrl.Reset()
	}
	slog.Info("session restored", "id", s.id, "tick", s.tick, "elapsed", s.elapsed)
	return nil
}

// Resume rebuilds a session from a saved snapshot. The controller may
// differ from the one the save was taken under; nil hands control to the
// player.
func Resume(snap Snapshot, ctrl *ai.Controller) (*Session, error) {
	s := &Session{
		rng:     entropy.New(1),
		ctrl:    ctrl,
		courier: &courier.State{},
	}
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

func jobPtrs(list []jobs.Job) []*jobs.Job {
	out := make([]*jobs.Job, len(list))
	for i := range list {
		j := list[i]
		out[i] = &j
	}
	return out
}
