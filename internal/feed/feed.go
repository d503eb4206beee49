// Package feed loads the city map, job board, and weather forecast from the
// remote city API. Every successful response is cached on disk keyed by
// request URL, so a session can still start when the server is unreachable.
package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

// ErrUnavailable means both the remote fetch and the local cache failed.
// Fatal at startup; feeds are never re-fetched mid-session.
var ErrUnavailable = errors.New("feed unavailable")

// Endpoint paths under the base URL.
const (
	pathMap     = "/city/map"
	pathJobs    = "/city/jobs"
	pathWeather = "/city/weather"
)

// Client fetches feed payloads with a disk cache fallback.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	CacheDir   string
}

// NewClient creates a feed client. cacheDir may be empty to disable caching.
func NewClient(baseURL, cacheDir string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		CacheDir:   cacheDir,
	}
}

// Bundle is a full session's worth of feed data, converted to domain types.
type Bundle struct {
	Map         *city.Map
	Jobs        []*jobs.Job
	Weather     weather.Config
	MaxDuration float64   // Seconds; 0 means use the engine default
	StartTime   time.Time // Wall-clock anchor job deadlines were relative to
}

// Load fetches and decodes all three feeds. Malformed payloads are fatal.
func (c *Client) Load(ctx context.Context) (*Bundle, error) {
	rawMap, err := c.fetch(ctx, pathMap)
	if err != nil {
		return nil, err
	}
	m, maxDuration, start, err := decodeMap(rawMap)
	if err != nil {
		return nil, fmt.Errorf("map feed: %w", err)
	}

	rawJobs, err := c.fetch(ctx, pathJobs)
	if err != nil {
		return nil, err
	}
	list, err := decodeJobs(rawJobs, start, m)
	if err != nil {
		return nil, fmt.Errorf("jobs feed: %w", err)
	}

	rawWeather, err := c.fetch(ctx, pathWeather)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeWeather(rawWeather)
	if err != nil {
		return nil, fmt.Errorf("weather feed: %w", err)
	}

	slog.Info("feed loaded",
		"map", m.Name,
		"size", fmt.Sprintf("%dx%d", m.Width, m.Height),
		"goal", m.Goal,
		"jobs", len(list),
		"weather", cfg.Initial.String())

	return &Bundle{
		Map:         m,
		Jobs:        list,
		Weather:     cfg,
		MaxDuration: maxDuration,
		StartTime:   start,
	}, nil
}

// fetch returns the raw payload for an endpoint, remote first, cache second.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	url := c.BaseURL + path

	body, err := c.fetchRemote(ctx, url)
	if err == nil {
		c.cacheWrite(url, body)
		return body, nil
	}

	cached, cacheErr := c.cacheRead(url)
	if cacheErr == nil {
		slog.Warn("feed fetch failed, using cached copy", "path", path, "error", err)
		return cached, nil
	}
	return nil, fmt.Errorf("%w: %s (fetch: %v, cache: %v)", ErrUnavailable, path, err, cacheErr)
}

func (c *Client) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed error %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// cachePath keys the cache file by the request signature, so feeds from
// distinct base URLs never collide.
func (c *Client) cachePath(url string) string {
	sum := sha1.Sum([]byte(url))
	return filepath.Join(c.CacheDir, hex.EncodeToString(sum[:])+".json")
}

func (c *Client) cacheWrite(url string, body []byte) {
	if c.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		slog.Warn("feed cache dir", "error", err)
		return
	}
	if err := os.WriteFile(c.cachePath(url), body, 0o644); err != nil {
		slog.Warn("feed cache write", "path", c.cachePath(url), "error", err)
	}
}

func (c *Client) cacheRead(url string) ([]byte, error) {
	if c.CacheDir == "" {
		return nil, errors.New("no cache dir")
	}
	return os.ReadFile(c.cachePath(url))
}
