package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/courier-world/internal/config"
	"github.com/talgya/courier-world/internal/persistence"
)

var scoresLimit int

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Show the best finished runs",
	RunE:  showScores,
}

func init() {
	scoresCmd.Flags().IntVar(&scoresLimit, "limit", 10, "number of runs to show")
}

func showScores(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	db, err := persistence.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	scores, err := db.TopScores(scoresLimit)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		fmt.Println("No finished runs yet.")
		return nil
	}

	fmt.Printf("%-4s %-12s %-12s %-6s %-10s %s\n", "#", "SCORE", "INCOME", "REP", "ELAPSED", "OUTCOME")
	for i, sc := range scores {
		elapsed := time.Duration(sc.Elapsed * float64(time.Second)).Round(time.Second)
		fmt.Printf("%-4d %-12s %-12s %-6.1f %-10s %s\n",
			i+1,
			humanize.CommafWithDigits(sc.Score, 1),
			humanize.CommafWithDigits(sc.Income, 1),
			sc.Reputation,
			elapsed,
			sc.Outcome)
	}
	return nil
}
