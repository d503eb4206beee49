package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/courier-world/internal/city"
	"github.com/talgya/courier-world/internal/config"
	"github.com/talgya/courier-world/internal/engine"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/feed"
	"github.com/talgya/courier-world/internal/jobs"
	"github.com/talgya/courier-world/internal/weather"
)

var (
	mapWidth   int
	mapHeight  int
	mapSeed    int64
	mapGoal    float64
	mapJobs    int
	mapMaxTime float64
	mapName    string
)

var mapgenCmd = &cobra.Command{
	Use:   "mapgen",
	Short: "Generate a city and seed the feed cache",
	Long: `Mapgen lays out a procedural city, rolls a job board for it, and writes
both plus the default forecast into the feed cache. A later run against
the same cache directory starts without a live city API.`,
	RunE: generateCity,
}

func init() {
	mapgenCmd.Flags().IntVar(&mapWidth, "width", 28, "city width in tiles")
	mapgenCmd.Flags().IntVar(&mapHeight, "height", 20, "city height in tiles")
	mapgenCmd.Flags().Int64Var(&mapSeed, "seed", 1, "noise seed, same seed same city")
	mapgenCmd.Flags().Float64Var(&mapGoal, "goal", 3000, "income target")
	mapgenCmd.Flags().IntVar(&mapJobs, "jobs", 14, "number of jobs on the board")
	mapgenCmd.Flags().Float64Var(&mapMaxTime, "max-time", engine.DefaultMaxDuration, "shift length in session seconds")
	mapgenCmd.Flags().StringVar(&mapName, "name", "generated", "city name")
}

func generateCity(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	gen := city.DefaultGenConfig()
	gen.Width = mapWidth
	gen.Height = mapHeight
	gen.Seed = mapSeed
	gen.Goal = mapGoal
	gen.Name = mapName
	m := city.Generate(gen)

	list, err := jobs.NewGenerator(entropy.New(uint64(mapSeed))).Generate(m, mapJobs, 0)
	if err != nil {
		return err
	}

	client := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.CacheDir)
	if err := client.Seed(m, list, weather.DefaultConfig(), mapMaxTime, time.Now()); err != nil {
		return err
	}

	fmt.Printf("Seeded %s: %dx%d city, %d jobs, goal %.0f, cache %s\n",
		m.Name, m.Width, m.Height, len(list), m.Goal, cfg.Feed.CacheDir)
	return nil
}
