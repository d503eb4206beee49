// Package engine provides the tick-based simulation loop and the session
// it drives: one advance call per tick moves weather, jobs, the courier,
// and the optional autopilot forward in a fixed order.
package engine

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the session-time quantum one tick represents.
const DefaultInterval = 100 * time.Millisecond

// Engine drives the simulation forward in real time. Speed compresses or
// stretches the wall clock; each tick always advances the session by the
// same Interval of session time.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Session time per tick

	// OnTick runs every tick with the session-time delta in seconds.
	OnTick func(tick uint64, dt float64)

	running bool
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: DefaultInterval,
	}
}

// Run starts the loop. Blocks until Stop is called or the context is
// cancelled. Sleep is drift-adjusted: the work done inside a tick is
// subtracted from the pause that follows it.
func (e *Engine) Run(ctx context.Context) {
	if e.OnTick == nil {
		slog.Error("engine started without a tick callback")
		return
	}
	e.running = true
	slog.Info("engine started", "tick", e.Tick, "speed", e.Speed, "interval", e.Interval)

	for e.running {
		select {
		case <-ctx.Done():
			e.running = false
			slog.Info("engine stopped", "tick", e.Tick, "reason", "context cancelled")
			return
		default:
		}

		if e.Speed <= 0 {
			// Paused. Check back shortly.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		e.Tick++
		e.OnTick(e.Tick, e.Interval.Seconds())

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			select {
			case <-ctx.Done():
				e.running = false
				slog.Info("engine stopped", "tick", e.Tick, "reason", "context cancelled")
				return
			case <-time.After(target - elapsed):
			}
		}
	}

	slog.Info("engine stopped", "tick", e.Tick)
}

// Stop halts the loop after the current tick.
func (e *Engine) Stop() {
	e.running = false
}
