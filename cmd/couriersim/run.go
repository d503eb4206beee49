package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talgya/courier-world/internal/ai"
	"github.com/talgya/courier-world/internal/api"
	"github.com/talgya/courier-world/internal/config"
	"github.com/talgya/courier-world/internal/engine"
	"github.com/talgya/courier-world/internal/entropy"
	"github.com/talgya/courier-world/internal/feed"
	"github.com/talgya/courier-world/internal/persistence"
)

var (
	fresh   bool
	runAddr string
	runSeed uint64
	runTier string
	runDB   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a courier session",
	Long: `Run resumes the configured save slot when it holds a session, or starts
a fresh one from the city feed. The loop ticks in real time, autosaves
on a timer, and records the final score when the shift ends.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&fresh, "fresh", false, "ignore any existing save and start over")
	runCmd.Flags().StringVar(&runAddr, "addr", "", "observer API address, overrides config")
	runCmd.Flags().Uint64Var(&runSeed, "seed", 0, "deterministic session seed, overrides config")
	runCmd.Flags().StringVar(&runTier, "tier", "", "autopilot tier easy|medium|hard, overrides config")
	runCmd.Flags().StringVar(&runDB, "db", "", "database path, overrides config")
}

func runSession(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.API.Addr = runAddr
	}
	if cmd.Flags().Changed("seed") {
		cfg.Session.Seed = runSeed
	}
	if cmd.Flags().Changed("tier") {
		cfg.Session.Autopilot = runTier
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = runDB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	sess, err := openSession(cmd.Context(), cfg, db)
	if err != nil {
		return err
	}

	pub := &engine.Published{}
	pub.Publish(sess.View(), sess.Events())

	var srv *api.Server
	if cfg.API.Enabled {
		srv = api.NewServer(pub, db, cfg.API.Addr, cfg.API.RatePerMin)
		srv.Start()
	}

	eng := engine.NewEngine()
	eng.Speed = cfg.Engine.Speed
	eng.Interval = time.Duration(cfg.Engine.TickMillis) * time.Millisecond

	autosave := time.Duration(cfg.Engine.AutosaveSec) * time.Second
	lastSave := time.Now()
	streamedTick := sess.CurrentTick()

	eng.OnTick = func(tick uint64, dt float64) {
		sess.Advance(dt)

		events := sess.Events()
		pub.Publish(sess.View(), events)
		if srv != nil {
			srv.Broadcast(eventsAfter(events, streamedTick))
		}
		streamedTick = sess.CurrentTick()

		if autosave > 0 && time.Since(lastSave) >= autosave {
			saveSession(db, cfg.Session.Slot, sess)
			lastSave = time.Now()
		}
		if sess.Outcome().Over() {
			eng.Stop()
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())
		cancel()
	}()

	eng.Run(ctx)

	saveSession(db, cfg.Session.Slot, sess)
	if sess.Outcome().Over() {
		sc := sess.FinalScore()
		if err := db.AddScore(sc); err != nil {
			slog.Error("score not recorded", "error", err)
		}
		slog.Info("shift over",
			"outcome", sess.Outcome().String(),
			"score", sc.Score,
			"income", sc.Income,
			"reputation", sc.Reputation,
			"elapsed", sc.Elapsed)
	}
	return nil
}

// openSession resumes the configured slot or builds a fresh session from
// the city feed.
func openSession(ctx context.Context, cfg config.Config, db *persistence.DB) (*engine.Session, error) {
	rng := entropy.NewRandom()
	if cfg.Session.Seed != 0 {
		rng = entropy.New(cfg.Session.Seed)
	}

	var ctrl *ai.Controller
	if cfg.Session.Autopilot != "" {
		tier, err := ai.ParseTier(cfg.Session.Autopilot)
		if err != nil {
			return nil, err
		}
		ctrl = ai.New(tier, rng)
	}

	if !fresh {
		saved, err := db.HasSave(cfg.Session.Slot)
		if err != nil {
			return nil, err
		}
		if saved {
			snap, err := db.LoadSession(cfg.Session.Slot)
			if err != nil {
				return nil, err
			}
			sess, err := engine.Resume(snap, ctrl)
			if err != nil {
				return nil, err
			}
			slog.Info("session resumed", "slot", cfg.Session.Slot, "session", sess.ID(), "sim_time", sess.Elapsed())
			return sess, nil
		}
	}

	bundle, err := feed.NewClient(cfg.Feed.BaseURL, cfg.Feed.CacheDir).Load(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewSession(bundle.Map, bundle.Weather, bundle.Jobs, rng, engine.Options{
		Goal:        cfg.Session.Goal,
		MaxDuration: bundle.MaxDuration,
		Start:       engine.DefaultStart(bundle.Map),
		UndoDepth:   cfg.Session.UndoDepth,
		Controller:  ctrl,
	})
}

// eventsAfter returns the tail of the log recorded after the given tick.
func eventsAfter(events []engine.Event, tick uint64) []engine.Event {
	i := len(events)
	for i > 0 && events[i-1].Tick > tick {
		i--
	}
	return events[i:]
}

func saveSession(db *persistence.DB, slot string, sess *engine.Session) {
	snap, err := sess.Snapshot()
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		return
	}
	if err := db.SaveSession(slot, snap); err != nil {
		slog.Error("save failed", "slot", slot, "error", err)
		return
	}
	if err := db.SaveEvents(slot, sess.Events()); err != nil {
		slog.Error("event dump failed", "slot", slot, "error", err)
	}
}
