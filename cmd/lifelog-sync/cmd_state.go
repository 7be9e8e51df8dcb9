package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stateCmd)
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the last run time and sync statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		state := config.LoadRunState(cfg.ResolvedStatePath())

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		last := "never"
		if t, ok := state.LastRun(); ok {
			last = t.Local().Format(time.RFC1123)
		}
		fmt.Fprintf(w, "State file\t%s\n", cfg.ResolvedStatePath())
		fmt.Fprintf(w, "Last run\t%s\n", last)

		stats := state.Stats()
		fmt.Fprintf(w, "Transcripts processed\t%d\n", stats.TotalTranscriptsProcessed)

		collections := make([]string, 0, len(stats.ItemsCreated))
		for c := range stats.ItemsCreated {
			collections = append(collections, c)
		}
		sort.Strings(collections)
		for _, c := range collections {
			fmt.Fprintf(w, "Created in %s\t%d\n", c, stats.ItemsCreated[c])
		}
		return w.Flush()
	},
}
