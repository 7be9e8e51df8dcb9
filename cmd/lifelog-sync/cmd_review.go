package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcao2/lifelog-sync/internal/pipeline"
	"github.com/mcao2/lifelog-sync/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().Int("days", 0, "look-back window in days (default from config)")
	reviewCmd.Flags().String("transcripts-path", "", "review transcripts from a JSON file or directory")
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Preview the records a run would write",
	Long:  "Runs the pipeline without writing to Notion and shows the resulting records in a table. Press c to copy a record's JSON.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cfg, buildOptions{dryRun: true})
		if err != nil {
			return err
		}

		opts := runOptions(cfg)
		opts.DryRun = true
		if days, _ := cmd.Flags().GetInt("days"); days > 0 {
			opts.Days = days
		}
		opts.TranscriptsPath, _ = cmd.Flags().GetString("transcripts-path")

		m := ui.NewModel(func(ctx context.Context) (*pipeline.Summary, error) {
			return a.pipeline.Run(ctx, opts)
		})
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("review UI: %w", err)
		}
		return nil
	},
}
