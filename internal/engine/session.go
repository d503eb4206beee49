package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/talgya/courier-world/internal/ai"
	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/courier"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

// ErrSessionOver rejects inputs arriving after the session has ended.
var ErrSessionOver = errors.New("session is over")

// DefaultMaxDuration bounds a session at fifteen minutes of session time.
const DefaultMaxDuration = 900.0

// Outcome is how a session stands or how it ended.
type Outcome uint8

const (
	OutcomeOpen Outcome = iota
	OutcomeVictory
	OutcomeDefeatReputation
	OutcomeDefeatStamina
	OutcomeDefeatTimeout
)

var outcomeNames = [...]string{"open", "victory", "defeat_reputation", "defeat_stamina", "defeat_timeout"}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Over reports whether the session has reached a terminal outcome.
func (o Outcome) Over() bool { return o != OutcomeOpen }

// MarshalText stores outcomes by name in snapshots.
func (o Outcome) MarshalText() ([]byte, error) {
	if int(o) >= len(outcomeNames) {
		return nil, fmt.Errorf("engine: unknown outcome %d", uint8(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText restores an outcome from its name.
func (o *Outcome) UnmarshalText(b []byte) error {
	for i, n := range outcomeNames {
		if n == string(b) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("engine: unknown outcome %q", string(b))
}

// Options configure a new session. Zero values fall back to the map's
// goal, DefaultMaxDuration, courier.DefaultParams, and DefaultUndoDepth.
type Options struct {
	Goal        float64
	MaxDuration float64
	Courier     courier.Params
	Start       city.Coord
	UndoDepth   int

	// Controller drives the courier when set. Nil means player input
	// through MovePlayer, AcceptJob, and the rest.
	Controller *ai.Controller
}

// Session owns one run of the simulation: the map, the weather process,
// the job registry, and the courier, advanced together in fixed steps.
// It is not safe for concurrent use; callers serialize access.
type Session struct {
	id       string
	m        *city.Map
	wcfg     weather.Config
	weather  *weather.Process
	registry *jobs.Registry
	courier  *courier.State
	ctrl     *ai.Controller
	rng      *entropy.Source
	undo     *courier.History

	goal        float64
	maxDuration float64

	tick        uint64
	elapsed     float64
	moveWait    float64
	outcome     Outcome
	lastWeather weather.State
	events      []Event
}

// NewSession wires a session from its parts. The job list and entropy
// source are owned by the session afterward.
func NewSession(m *city.Map, wcfg weather.Config, list []*jobs.Job, rng *entropy.Source, opts Options) (*Session, error) {
	if m == nil {
		return nil, errors.New("engine: nil map")
	}
	if rng == nil {
		return nil, errors.New("engine: nil entropy source")
	}
	if !m.IsWalkable(opts.Start) {
		return nil, fmt.Errorf("engine: start tile (%d,%d) is not walkable", opts.Start.X, opts.Start.Y)
	}
	proc, err := weather.NewProcess(wcfg, rng)
	if err != nil {
		return nil, err
	}
	reg, err := jobs.NewRegistry(list)
	if err != nil {
		return nil, err
	}

	params := opts.Courier
	if params == (courier.Params{}) {
		params = courier.DefaultParams()
	}
	goal := opts.Goal
	if goal <= 0 {
		goal = m.Goal
	}
	maxDur := opts.MaxDuration
	if maxDur <= 0 {
		maxDur = DefaultMaxDuration
	}

	s := &Session{
		id:          uuid.NewString(),
		m:           m,
		wcfg:        wcfg,
		weather:     proc,
		registry:    reg,
		courier:     courier.NewState(params, opts.Start),
		ctrl:        opts.Controller,
		rng:         rng,
		undo:        courier.NewHistory(opts.UndoDepth),
		goal:        goal,
		maxDuration: maxDur,
		lastWeather: proc.Current(),
	}
	s.record("session", "shift started")
	slog.Info("session started",
		"id", s.id,
		"map", m.Name,
		"goal", goal,
		"jobs", len(list),
		"autopilot", s.ctrl != nil)
	return s, nil
}

// DefaultStart picks a deterministic spawn tile: the first door tile in
// scan order, or the first walkable tile on maps without buildings.
func DefaultStart(m *city.Map) city.Coord {
	if doors := m.DoorTiles(); len(doors) > 0 {
		return doors[0]
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := city.Coord{X: x, Y: y}
			if m.IsWalkable(c) {
				return c
			}
		}
	}
	return city.Coord{}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Map returns the session's map.
func (s *Session) Map() *city.Map { return s.m }

// Outcome returns the session's standing.
func (s *Session) Outcome() Outcome { return s.outcome }

// Elapsed returns session time in seconds.
func (s *Session) Elapsed() float64 { return s.elapsed }

// CurrentTick returns the number of steps advanced so far.
func (s *Session) CurrentTick() uint64 { return s.tick }

// Goal returns the income target.
func (s *Session) Goal() float64 { return s.goal }

// Courier exposes the courier state for rendering. Treat it as read-only.
func (s *Session) Courier() *courier.State { return s.courier }

// Registry exposes the job registry for rendering. Treat it as read-only.
func (s *Session) Registry() *jobs.Registry { return s.registry }

// Weather exposes the weather process for rendering. Treat it as read-only.
func (s *Session) Weather() *weather.Process { return s.weather }

// Advance moves the session forward by dt seconds of session time. The
// order is fixed each step: weather, job expiration, autopilot input,
// doorstep handoffs, end conditions. Inputs after the end are ignored.
func (s *Session) Advance(dt float64) {
	if dt <= 0 || s.outcome.Over() {
		return
	}
	s.tick++
	s.elapsed += dt
	if s.moveWait > 0 {
		s.moveWait -= dt
		if s.moveWait < 0 {
			s.moveWait = 0
		}
	}

	if err := s.weather.Advance(dt); err != nil {
		slog.Error("weather advance failed", "error", err)
	}
	if cur := s.weather.Current(); cur != s.lastWeather {
		s.record("weather", "conditions shifted to "+cur.String())
		s.lastWeather = cur
	}

	s.expireJobs()

	if s.ctrl != nil {
		s.applyIntent(s.ctrl.Decide(s.aiSnapshot(dt)))
	}
	s.autoHandoff()
	s.checkEnd()
}

// expireJobs retires everything past its deadline and charges the courier
// for jobs that expired in hand.
func (s *Session) expireJobs() {
	for _, ex := range s.registry.ExpireDue(s.elapsed) {
		if ex.WasCarried {
			s.courier.ApplyExpiry()
			s.courier.Inventory.Remove(ex.JobID)
			s.record("job", ex.JobID+" expired in hand")
		} else {
			s.record("job", ex.JobID+" expired unclaimed")
		}
	}
}

func (s *Session) applyIntent(in ai.Intent) {
	if in.AcceptID != "" {
		if err := s.accept(in.AcceptID); err != nil {
			slog.Debug("autopilot accept rejected", "job", in.AcceptID, "error", err)
		}
	}
	if in.HasStep {
		if err := s.step(in.Step); err != nil {
			slog.Debug("autopilot step rejected", "dir", in.Step.String(), "error", err)
		}
	}
}

func (s *Session) accept(id string) error {
	if err := s.registry.Accept(id, s.elapsed, s.registry.CarriedWeight(), s.courier.Params.MaxWeight); err != nil {
		return err
	}
	if err := s.courier.Inventory.Add(id); err != nil {
		return err
	}
	s.record("job", id+" accepted")
	return nil
}

// step attempts one tile of movement. Movement is paced: after each
// completed step the courier waits 1/Speed seconds of session time, and
// steps attempted during the wait are quietly dropped.
func (s *Session) step(dir city.Direction) error {
	if s.moveWait > 0 {
		return nil
	}
	carried := s.registry.CarriedWeight()
	if err := s.courier.Move(s.m, dir, s.weather.StaminaCostMultiplier(), carried); err != nil {
		return err
	}
	if v := s.courier.Speed(s.weather.SpeedMultiplier(), carried); v > 0 {
		s.moveWait = 1 / v
	}
	return nil
}

// autoHandoff completes doorstep interactions: accepted jobs are picked
// up and carried jobs delivered the moment the courier stands within
// reach of the right building door.
func (s *Session) autoHandoff() {
	pos := s.courier.Pos
	for _, j := range s.registry.Carried() {
		switch j.Status {
		case jobs.StatusAccepted:
			if city.Manhattan(pos, j.Pickup) <= jobs.DoorstepRadius {
				if err := s.registry.PickUp(j.ID, pos); err == nil {
					s.record("job", j.ID+" picked up")
				}
			}
		case jobs.StatusPickedUp:
			if city.Manhattan(pos, j.Dropoff) <= jobs.DoorstepRadius {
				d, err := s.registry.Deliver(j.ID, pos, s.elapsed)
				if err != nil {
					continue
				}
				res := s.courier.ApplyDelivery(d)
				s.courier.Inventory.Remove(j.ID)
				s.record("job", fmt.Sprintf("%s delivered for %.0f (rep %+.0f)", j.ID, res.Payout, res.RepDelta))
			}
		}
	}
}

// checkEnd settles the session when a terminal condition holds. Victory
// is checked first so reaching the goal on the final delivery wins even
// if the same step drained the courier.
func (s *Session) checkEnd() {
	switch {
	case s.courier.Money >= s.goal:
		s.finish(OutcomeVictory)
	case s.courier.Defeated():
		s.finish(OutcomeDefeatReputation)
	case s.courier.Exhausted():
		s.finish(OutcomeDefeatStamina)
	case s.elapsed >= s.maxDuration:
		s.finish(OutcomeDefeatTimeout)
	}
}

func (s *Session) finish(o Outcome) {
	s.outcome = o
	s.record("session", "shift ended: "+o.String())
	sc := s.FinalScore()
	slog.Info("session ended",
		"id", s.id,
		"outcome", o.String(),
		"score", sc.Score,
		"income", sc.Income,
		"reputation", sc.Reputation,
		"elapsed", s.elapsed)
}

func (s *Session) aiSnapshot(dt float64) *ai.Snapshot {
	return &ai.Snapshot{
		Map:           s.m,
		Pos:           s.courier.Pos,
		Stamina:       s.courier.Stamina,
		MaxStamina:    s.courier.Params.MaxStamina,
		CarriedWeight: s.registry.CarriedWeight(),
		MaxWeight:     s.courier.Params.MaxWeight,
		Available:     jobValues(s.registry.Available(s.elapsed)),
		Carried:       jobValues(s.registry.Carried()),
		SpeedMult:     s.weather.SpeedMultiplier(),
		StaminaMult:   s.weather.StaminaCostMultiplier(),
		Weather:       s.weather.Current(),
		Elapsed:       s.elapsed,
		Dt:            dt,
	}
}

func jobValues(list []*jobs.Job) []jobs.Job {
	if len(list) == 0 {
		return nil
	}
	out := make([]jobs.Job, len(list))
	for i, j := range list {
		out[i] = *j
	}
	return out
}

// MovePlayer applies one step of player movement. A rewind point is
// pushed only when the courier actually changes tiles, so pacing no-ops
// never eat undo history.
func (s *Session) MovePlayer(dir city.Direction) error {
	if s.outcome.Over() {
		return ErrSessionOver
	}
	rec := s.undoRecord()
	before := s.courier.Pos
	if err := s.step(dir); err != nil {
		return err
	}
	if s.courier.Pos == before {
		return nil
	}
	s.undo.Push(rec)
	s.autoHandoff()
	s.checkEnd()
	return nil
}

// AcceptJob claims an available job for the player.
func (s *Session) AcceptJob(id string) error {
	if s.outcome.Over() {
		return ErrSessionOver
	}
	rec := s.undoRecord()
	if err := s.accept(id); err != nil {
		return err
	}
	s.undo.Push(rec)
	return nil
}

// CancelJob abandons an accepted or picked-up job. The job is gone for
// good and the reputation cost lands immediately.
func (s *Session) CancelJob(id string) error {
	if s.outcome.Over() {
		return ErrSessionOver
	}
	rec := s.undoRecord()
	if err := s.registry.Cancel(id); err != nil {
		return err
	}
	s.courier.ApplyCancel()
	s.courier.Inventory.Remove(id)
	s.undo.Push(rec)
	s.record("job", id+" cancelled")
	s.checkEnd()
	return nil
}

// Undo rewinds the most recent player action: courier state and job
// statuses return to their prior values. The clock and the weather do
// not rewind.
func (s *Session) Undo() error {
	if s.outcome.Over() {
		return ErrSessionOver
	}
	rec, err := s.undo.Pop()
	if err != nil {
		return err
	}
	st := rec.Courier.Clone()
	*s.courier = st
	if err := s.registry.RestoreStatuses(rec.Jobs); err != nil {
		return err
	}
	s.record("courier", "action undone")
	return nil
}

func (s *Session) undoRecord() courier.Record {
	return courier.Record{
		Courier: s.courier.Clone(),
		Jobs:    s.registry.StatusMap(),
	}
}

// FocusNext moves inventory focus forward.
func (s *Session) FocusNext() { s.courier.Inventory.Next() }

// FocusPrev moves inventory focus backward.
func (s *Session) FocusPrev() { s.courier.Inventory.Prev() }

// SortInventory reorders carried jobs by the given mode. Sorting is a
// view change, not an action, so it costs nothing and is not undoable.
func (s *Session) SortInventory(mode courier.SortMode) {
	byID := make(map[string]*jobs.Job, s.courier.Inventory.Len())
	for _, id := range s.courier.Inventory.IDs() {
		if j, err := s.registry.Get(id); err == nil {
			byID[id] = j
		}
	}
	s.courier.Inventory.SortBy(mode, byID)
}

// Score is the final tally of a session.
type Score struct {
	Session    string  `json:"session" db:"session"`
	Score      float64 `json:"score" db:"score"`
	Income     float64 `json:"income" db:"income"`
	Reputation float64 `json:"reputation" db:"reputation"`
	Elapsed    float64 `json:"elapsed" db:"elapsed"`
	Outcome    string  `json:"outcome" db:"outcome"`
}

// FinalScore computes the tally as the session stands.
func (s *Session) FinalScore() Score {
	return Score{
		Session:    s.id,
		Score:      s.courier.FinalScore(),
		Income:     s.courier.Money,
		Reputation: s.courier.Reputation,
		Elapsed:    s.elapsed,
		Outcome:    s.outcome.String(),
	}
}
