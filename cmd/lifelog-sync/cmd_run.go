package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcao2/lifelog-sync/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.Int("days", 0, "look-back window in days when there is no previous run (default from config)")
	f.String("date", "", "only fetch transcripts for this date (YYYY-MM-DD)")
	f.Int("max-results", 0, "maximum transcripts to fetch (default from config)")
	f.String("transcripts-path", "", "process transcripts from a JSON file or directory instead of fetching")
	f.Bool("skip-processed", false, "skip transcripts already recorded in run state")
	f.Bool("manual-extract", false, "extract through the clipboard instead of calling the LLM API")
	f.Bool("dry-run", false, "run every stage except the Notion write")
	f.Bool("force", false, "re-archive transcripts that are already indexed")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, extract and sync transcripts once",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	f := cmd.Flags()
	manual, _ := f.GetBool("manual-extract")
	dryRun, _ := f.GetBool("dry-run")
	force, _ := f.GetBool("force")

	a, err := buildApp(cfg, buildOptions{manualExtract: manual, forceArchive: force, dryRun: dryRun})
	if err != nil {
		return err
	}

	opts := runOptions(cfg)
	if days, _ := f.GetInt("days"); days > 0 {
		opts.Days = days
	}
	if n, _ := f.GetInt("max-results"); n > 0 {
		opts.MaxResults = n
	}
	opts.Date, _ = f.GetString("date")
	opts.TranscriptsPath, _ = f.GetString("transcripts-path")
	opts.SkipProcessed, _ = f.GetBool("skip-processed")
	opts.DryRun = dryRun

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := a.pipeline.Run(ctx, opts)
	fmt.Fprintln(os.Stdout, ui.RenderSummary(sum, ui.DefaultStyles()))
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}
