// Fixture encoding: renders domain types back into the payload shapes the
// decoders accept and plants them in the cache where fetch fallback looks.
// mapgen uses this so a later run works with no server reachable.
package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

var terrainCodes = map[city.Terrain]rune{
	city.TerrainStreet:   'C',
	city.TerrainPark:     'P',
	city.TerrainBuilding: 'B',
	city.TerrainBlocked:  'X',
}

// Seed writes feed-shaped payloads for the three endpoints into the cache,
// keyed exactly as a live fetch against the same base URL would key them.
func (c *Client) Seed(m *city.Map, list []*jobs.Job, cfg weather.Config, maxDuration float64, start time.Time) error {
	if c.CacheDir == "" {
		return fmt.Errorf("seed: no cache dir configured")
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	payloads := map[string]any{
		pathMap:     encodeMap(m, maxDuration, start),
		pathJobs:    encodeJobs(list),
		pathWeather: encodeWeather(cfg),
	}
	for path, payload := range payloads {
		body, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		if err := os.WriteFile(c.cachePath(c.BaseURL+path), body, 0o644); err != nil {
			return fmt.Errorf("write %s fixture: %w", path, err)
		}
	}

	slog.Info("feed cache seeded", "dir", c.CacheDir, "map", m.Name, "jobs", len(list))
	return nil
}

type mapData struct {
	CityName  string                 `json:"city_name"`
	Width     int                    `json:"width"`
	Height    int                    `json:"height"`
	Goal      float64                `json:"goal"`
	MaxTime   float64                `json:"max_time"`
	StartTime string                 `json:"start_time"`
	Tiles     []string               `json:"tiles"`
	Legend    map[string]legendEntry `json:"legend"`
}

func encodeMap(m *city.Map, maxDuration float64, start time.Time) any {
	rows := make([]string, m.Height)
	legend := map[string]legendEntry{}
	for y := 0; y < m.Height; y++ {
		var b strings.Builder
		for x := 0; x < m.Width; x++ {
			t := m.Tiles[y][x]
			code := string(terrainCodes[t.Terrain])
			b.WriteString(code)
			// Weights vary per terrain kind, not per tile, on generated
			// maps, so the first tile of a kind fixes its legend entry.
			if _, seen := legend[code]; !seen {
				legend[code] = legendEntry{
					Name:          strings.ToLower(city.TerrainName(t.Terrain)),
					SurfaceWeight: 1 / t.Weight,
					Blocked:       !t.Terrain.Walkable(),
				}
			}
		}
		rows[y] = b.String()
	}

	return struct {
		Data mapData `json:"data"`
	}{Data: mapData{
		CityName:  m.Name,
		Width:     m.Width,
		Height:    m.Height,
		Goal:      m.Goal,
		MaxTime:   maxDuration,
		StartTime: start.UTC().Format(time.RFC3339),
		Tiles:     rows,
		Legend:    legend,
	}}
}

type jobData struct {
	ID          string  `json:"id"`
	Pickup      [2]int  `json:"pickup"`
	Dropoff     [2]int  `json:"dropoff"`
	Payout      float64 `json:"payout"`
	Weight      float64 `json:"weight"`
	Priority    int     `json:"priority"`
	ReleaseTime float64 `json:"release_time"`
	Deadline    float64 `json:"deadline"`
}

func encodeJobs(list []*jobs.Job) any {
	data := make([]jobData, len(list))
	for i, j := range list {
		data[i] = jobData{
			ID:          j.ID,
			Pickup:      [2]int{j.Pickup.X, j.Pickup.Y},
			Dropoff:     [2]int{j.Dropoff.X, j.Dropoff.Y},
			Payout:      j.Payout,
			Weight:      j.Weight,
			Priority:    j.Priority,
			ReleaseTime: j.ReleaseAt,
			Deadline:    j.Deadline,
		}
	}
	return struct {
		Data []jobData `json:"data"`
	}{Data: data}
}

type conditionData struct {
	Condition string  `json:"condition"`
	Intensity float64 `json:"intensity"`
}

type burstData struct {
	Condition string  `json:"condition"`
	Duration  float64 `json:"duration"`
}

type weatherData struct {
	Transition map[string]map[string]float64 `json:"transition"`
	Initial    conditionData                 `json:"initial"`
	Bursts     []burstData                   `json:"bursts,omitempty"`
}

func encodeWeather(cfg weather.Config) any {
	transition := make(map[string]map[string]float64, len(cfg.Transitions))
	for from, row := range cfg.Transitions {
		out := make(map[string]float64, len(row))
		for to, p := range row {
			out[to.String()] = p
		}
		transition[from.String()] = out
	}

	bursts := make([]burstData, len(cfg.Bursts))
	for i, b := range cfg.Bursts {
		bursts[i] = burstData{Condition: b.State.String(), Duration: b.Duration}
	}

	return struct {
		Data weatherData `json:"data"`
	}{Data: weatherData{
		Transition: transition,
		Initial:    conditionData{Condition: cfg.Initial.String()},
		Bursts:     bursts,
	}}
}
