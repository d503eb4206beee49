package engine

// maxEvents bounds the session's event log; the oldest entries roll off.
const maxEvents = 1000

// Event is a notable occurrence during a session.
type Event struct {
	Tick        uint64  `json:"tick"`
	Elapsed     float64 `json:"elapsed"`
	Category    string  `json:"category"` // "weather", "job", "courier", "session"
	Description string  `json:"description"`
}

func (s *Session) record(category, description string) {
	s.events = append(s.events, Event{
		Tick:        s.tick,
		Elapsed:     s.elapsed,
		Category:    category,
		Description: description,
	})
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// Events returns a copy of the recorded log, oldest first.
func (s *Session) Events() []Event {
	return append([]Event(nil), s.events...)
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Session) RecentEvents(n int) []Event {
	if n <= 0 || len(s.events) == 0 {
		return nil
	}
	if n > len(s.events) {
		n = len(s.events)
	}
	return append([]Event(nil), s.events[len(s.events)-n:]...)
}
