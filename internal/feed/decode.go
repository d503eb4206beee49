// Payload decoding. Every endpoint wraps its content in a "data" envelope;
// everything decoded here passes through the domain constructors, so a
// malformed feed fails at load instead of surfacing mid-session.
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

// tileRow accepts both encodings the feed uses for one map row: a plain
// string and an array of single-character cells.
type tileRow string

func (r *tileRow) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = tileRow(s)
		return nil
	}
	var cells []string
	if err := json.Unmarshal(b, &cells); err != nil {
		return fmt.Errorf("map row must be a string or a cell array")
	}
	*r = tileRow(strings.Join(cells, ""))
	return nil
}

type legendEntry struct {
	Name          string  `json:"name,omitempty"`
	SurfaceWeight float64 `json:"surface_weight,omitempty"`
	Blocked       bool    `json:"blocked,omitempty"`
}

type mapPayload struct {
	Data struct {
		CityName  string                 `json:"city_name"`
		Width     int                    `json:"width"`
		Height    int                    `json:"height"`
		Goal      float64                `json:"goal"`
		MaxTime   float64                `json:"max_time"`
		StartTime string                 `json:"start_time"`
		Tiles     []tileRow              `json:"tiles"`
		Legend    map[string]legendEntry `json:"legend"`
	} `json:"data"`
}

// decodeMap converts the map payload into a validated city map plus the
// session duration and the deadline anchor it carries.
func decodeMap(raw []byte) (*city.Map, float64, time.Time, error) {
	var p mapPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, 0, time.Time{}, fmt.Errorf("parse map payload: %w", err)
	}
	d := p.Data

	if d.Goal <= 0 {
		return nil, 0, time.Time{}, fmt.Errorf("goal %v must be positive", d.Goal)
	}

	legend := city.DefaultLegend
	if len(d.Legend) > 0 {
		var err error
		legend, err = convertLegend(d.Legend)
		if err != nil {
			return nil, 0, time.Time{}, err
		}
	}

	rows := make([]string, len(d.Tiles))
	for i, r := range d.Tiles {
		rows[i] = string(r)
	}
	name := d.CityName
	if name == "" {
		name = "city"
	}
	m, err := city.FromGrid(rows, legend, d.Goal, name)
	if err != nil {
		return nil, 0, time.Time{}, err
	}
	if d.Width != 0 && d.Width != m.Width {
		return nil, 0, time.Time{}, fmt.Errorf("declared width %d, tiles are %d wide", d.Width, m.Width)
	}
	if d.Height != 0 && d.Height != m.Height {
		return nil, 0, time.Time{}, fmt.Errorf("declared height %d, tiles are %d tall", d.Height, m.Height)
	}

	start := time.Now()
	if d.StartTime != "" {
		start, err = time.Parse(time.RFC3339, d.StartTime)
		if err != nil {
			return nil, 0, time.Time{}, fmt.Errorf("parse start_time %q: %w", d.StartTime, err)
		}
	}
	return m, d.MaxTime, start, nil
}

// convertLegend maps feed legend entries onto tile specs. The feed's
// surface_weight divides movement cost (smaller means slower ground), while
// tile weights multiply it, so values invert on the way in.
func convertLegend(entries map[string]legendEntry) (map[rune]city.TileSpec, error) {
	legend := make(map[rune]city.TileSpec, len(entries))
	for code, e := range entries {
		rs := []rune(code)
		if len(rs) != 1 {
			return nil, fmt.Errorf("legend code %q must be one character", code)
		}
		if e.SurfaceWeight < 0 {
			return nil, fmt.Errorf("legend code %q has negative surface_weight %v", code, e.SurfaceWeight)
		}

		w := 1.0
		if e.SurfaceWeight > 0 {
			w = 1 / e.SurfaceWeight
		}
		spec := city.TileSpec{Terrain: city.TerrainStreet, Weight: w}
		switch {
		case rs[0] == 'B':
			spec.Terrain = city.TerrainBuilding
		case e.Blocked:
			spec.Terrain = city.TerrainBlocked
		case rs[0] == 'P':
			spec.Terrain = city.TerrainPark
		}
		legend[rs[0]] = spec
	}
	return legend, nil
}

type jobPayload struct {
	Data []struct {
		ID          string          `json:"id"`
		Pickup      [2]int          `json:"pickup"`
		Dropoff     [2]int          `json:"dropoff"`
		Payout      float64         `json:"payout"`
		Weight      float64         `json:"weight"`
		Priority    int             `json:"priority"`
		ReleaseTime float64         `json:"release_time"`
		Deadline    json.RawMessage `json:"deadline"`
	} `json:"data"`
}

// decodeJobs converts the job board payload. Deadlines arrive either as
// ISO-8601 timestamps relative to the map's start time or as plain session
// seconds; both land as seconds.
func decodeJobs(raw []byte, start time.Time, m *city.Map) ([]*jobs.Job, error) {
	var p jobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse jobs payload: %w", err)
	}

	list := make([]*jobs.Job, 0, len(p.Data))
	for i, e := range p.Data {
		if e.ID == "" {
			return nil, fmt.Errorf("job %d has no id", i)
		}
		pickup := city.Coord{X: e.Pickup[0], Y: e.Pickup[1]}
		dropoff := city.Coord{X: e.Dropoff[0], Y: e.Dropoff[1]}
		if !m.InBounds(pickup) || !m.InBounds(dropoff) {
			return nil, fmt.Errorf("job %s endpoints off the map", e.ID)
		}
		if e.Payout <= 0 {
			return nil, fmt.Errorf("job %s payout %v must be positive", e.ID, e.Payout)
		}
		if e.Weight <= 0 {
			return nil, fmt.Errorf("job %s weight %v must be positive", e.ID, e.Weight)
		}
		if e.Priority < 0 {
			return nil, fmt.Errorf("job %s priority %d must not be negative", e.ID, e.Priority)
		}
		if e.ReleaseTime < 0 {
			return nil, fmt.Errorf("job %s release %v must not be negative", e.ID, e.ReleaseTime)
		}
		deadline, err := deadlineSeconds(e.Deadline, start)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", e.ID, err)
		}
		if deadline <= e.ReleaseTime {
			return nil, fmt.Errorf("job %s deadline %v not after release %v", e.ID, deadline, e.ReleaseTime)
		}

		list = append(list, &jobs.Job{
			ID:        e.ID,
			Pickup:    pickup,
			Dropoff:   dropoff,
			Payout:    e.Payout,
			Weight:    e.Weight,
			Priority:  e.Priority,
			ReleaseAt: e.ReleaseTime,
			Deadline:  deadline,
			Status:    jobs.StatusAvailable,
		})
	}
	return list, nil
}

func deadlineSeconds(raw json.RawMessage, start time.Time) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing deadline")
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		return secs, nil
	}
	var stamp string
	if err := json.Unmarshal(raw, &stamp); err != nil {
		return 0, fmt.Errorf("deadline must be seconds or a timestamp")
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return 0, fmt.Errorf("parse deadline %q: %w", stamp, err)
	}
	return t.Sub(start).Seconds(), nil
}

type weatherPayload struct {
	Data struct {
		Transition map[string]map[string]float64 `json:"transition"`
		Initial    struct {
			Condition string  `json:"condition"`
			Intensity float64 `json:"intensity"`
		} `json:"initial"`
		Bursts []struct {
			Condition string  `json:"condition"`
			Duration  float64 `json:"duration"`
		} `json:"bursts"`
	} `json:"data"`
}

// decodeWeather maps the forecast payload onto a weather config. Multipliers
// and dwell come from the standard catalog; the payload supplies the matrix,
// the opening condition, and any scheduled bursts. Intensity is ignored
// since state multipliers are fixed per condition.
func decodeWeather(raw []byte) (weather.Config, error) {
	var p weatherPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return weather.Config{}, fmt.Errorf("parse weather payload: %w", err)
	}

	cfg := weather.DefaultConfig()

	if len(p.Data.Transition) > 0 {
		catalog := cfg.States
		cfg.States = make(map[weather.State]weather.Multipliers, len(p.Data.Transition))
		cfg.Transitions = make(map[weather.State]map[weather.State]float64, len(p.Data.Transition))
		for from, row := range p.Data.Transition {
			s, err := weather.ParseState(from)
			if err != nil {
				return weather.Config{}, err
			}
			cfg.States[s] = catalog[s]
			parsed := make(map[weather.State]float64, len(row))
			for to, prob := range row {
				t, err := weather.ParseState(to)
				if err != nil {
					return weather.Config{}, err
				}
				parsed[t] = prob
			}
			cfg.Transitions[s] = parsed
		}
	}

	if cond := p.Data.Initial.Condition; cond != "" {
		s, err := weather.ParseState(cond)
		if err != nil {
			return weather.Config{}, err
		}
		cfg.Initial = s
	}

	cfg.Bursts = nil
	for _, b := range p.Data.Bursts {
		s, err := weather.ParseState(b.Condition)
		if err != nil {
			return weather.Config{}, err
		}
		cfg.Bursts = append(cfg.Bursts, weather.Burst{State: s, Duration: b.Duration})
	}

	if err := cfg.Validate(); err != nil {
		return weather.Config{}, err
	}
	return cfg, nil
}
