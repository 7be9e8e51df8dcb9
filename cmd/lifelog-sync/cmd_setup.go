package main

import (
	"fmt"
	"os"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/mcao2/lifelog-sync/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.Flags().Bool("example", false, "write a commented example config instead of prompting")
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create or update the config file interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if example, _ := cmd.Flags().GetBool("example"); example {
			if err := config.SaveExampleConfig(); err != nil {
				return fmt.Errorf("write example config: %w", err)
			}
			fmt.Fprintf(os.Stdout, "Example config at %s\n", config.ConfigPath())
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		result, err := ui.NewSetupForm(cfg).Run()
		if err != nil {
			return fmt.Errorf("setup form: %w", err)
		}
		result.Apply(cfg)
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		kw := config.LoadKeywords(cfg.ResolvedKeywordsPath())
		if _, err := os.Stat(kw.Path()); os.IsNotExist(err) {
			if err := kw.Save(); err != nil {
				return fmt.Errorf("save keywords: %w", err)
			}
		}
		fmt.Fprintf(os.Stdout, "Saved %s\n", config.ConfigPath())
		return nil
	},
}
