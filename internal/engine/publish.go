package engine

import "sync"

// Published holds the session frames other goroutines are allowed to read.
// The tick owner stores a fresh view and event log copy after each advance;
// readers always get the latest complete copy, never live session state.
type Published struct {
	mu     sync.RWMutex
	view   View
	events []Event
}

// Publish replaces the stored copy with the given frame.
func (p *Published) Publish(v View, events []Event) {
	p.mu.Lock()
	p.view = v
	p.events = events
	p.mu.Unlock()
}

// View returns the most recently published frame.
func (p *Published) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view
}

// Events returns up to n of the newest published events, oldest first.
// n <= 0 means all of them.
func (p *Published) Events(n int) []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n <= 0 || n > len(p.events) {
		n = len(p.events)
	}
	return append([]Event(nil), p.events[len(p.events)-n:]...)
}
