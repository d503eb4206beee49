package engine

import (
	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
)

// View is the read-only projection renderers and the observer API serve.
// Everything a frontend needs for one frame, no engine internals.
type View struct {
	ID          string     `json:"id"`
	Tick        uint64     `json:"tick"`
	Elapsed     float64    `json:"elapsed"`
	Remaining   float64    `json:"remaining"`
	Outcome     string     `json:"outcome"`
	MapName     string     `json:"map_name"`
	MapWidth    int        `json:"map_width"`
	MapHeight   int        `json:"map_height"`
	Pos         city.Coord `json:"pos"`
	Stamina     float64    `json:"stamina"`
	MaxStamina  float64    `json:"max_stamina"`
	Money       float64    `json:"money"`
	Goal        float64    `json:"goal"`
	Reputation  float64    `json:"reputation"`
	CleanStreak int        `json:"clean_streak"`

	Weather     string  `json:"weather"`
	SpeedMult   float64 `json:"speed_mult"`
	StaminaMult float64 `json:"stamina_mult"`

	CarriedWeight float64    `json:"carried_weight"`
	MaxWeight     float64    `json:"max_weight"`
	Carried       []jobs.Job `json:"carried"`
	Available     []jobs.Job `json:"available"`
	Focused       string     `json:"focused,omitempty"`
	InventoryMode string     `json:"inventory_mode"`

	Score  float64 `json:"score"`
	Events []Event `json:"events"`
}

// View renders the session's current frame.
func (s *Session) View() View {
	c := s.courier
	remaining := s.maxDuration - s.elapsed
	if remaining < 0 {
		remaining = 0
	}
	focused, _ := c.Inventory.Focused()
	return View{
		ID:            s.id,
		Tick:          s.tick,
		Elapsed:       s.elapsed,
		Remaining:     remaining,
		Outcome:       s.outcome.String(),
		MapName:       s.m.Name,
		MapWidth:      s.m.Width,
		MapHeight:     s.m.Height,
		Pos:           c.Pos,
		Stamina:       c.Stamina,
		MaxStamina:    c.Params.MaxStamina,
		Money:         c.Money,
		Goal:          s.goal,
		Reputation:    c.Reputation,
		CleanStreak:   c.CleanStreak,
		Weather:       s.weather.Current().String(),
		SpeedMult:     s.weather.SpeedMultiplier(),
		StaminaMult:   s.weather.StaminaCostMultiplier(),
		CarriedWeight: s.registry.CarriedWeight(),
		MaxWeight:     c.Params.MaxWeight,
		Carried:       orderedCarried(s),
		Available:     jobValues(s.registry.Available(s.elapsed)),
		Focused:       focused,
		InventoryMode: c.Inventory.Mode.String(),
		Score:         c.FinalScore(),
		Events:        s.RecentEvents(20),
	}
}

// orderedCarried lists carried jobs in the inventory's display order,
// which the player may have re-sorted, rather than registry order.
func orderedCarried(s *Session) []jobs.Job {
	ids := s.courier.Inventory.IDs()
	if len(ids) == 0 {
		return nil
	}
	out := make([]jobs.Job, 0, len(ids))
	for _, id := range ids {
		if j, err := s.registry.Get(id); err == nil {
			out = append(out, *j)
		}
	}
	return out
}
