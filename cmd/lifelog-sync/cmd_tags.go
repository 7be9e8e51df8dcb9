package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/mcao2/lifelog-sync/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.AddCommand(tagsAddCmd, tagsListCmd)
}

func keywordStore() (*config.Keywords, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return config.LoadKeywords(cfg.ResolvedKeywordsPath()), nil
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage descriptor and learned tags",
}

var tagsAddCmd = &cobra.Command{
	Use:   "add <item-type> <tag>",
	Short: "Add a descriptor tag for an item type (task, todo, project, meeting, research, message)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kw, err := keywordStore()
		if err != nil {
			return err
		}
		if err := kw.AddDescriptorTag(args[0], args[1]); err != nil {
			return fmt.Errorf("add tag: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Tag %q added for %s.\n", args[1], strings.ToLower(args[0]))
		return nil
	},
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned Notion tags and descriptor tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kw, err := keywordStore()
		if err != nil {
			return err
		}

		existing := kw.ExistingTags()
		if len(existing) == 0 {
			fmt.Println("No tags learned from Notion yet.")
		} else {
			fmt.Printf("Learned Notion tags (%d):\n  %s\n", len(existing), strings.Join(existing, ", "))
		}

		types := make([]string, 0, len(kw.DescriptorTags))
		for t := range kw.DescriptorTags {
			types = append(types, t)
		}
		sort.Strings(types)
		if len(types) == 0 {
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ITEM TYPE\tDESCRIPTOR TAGS")
		for _, t := range types {
			fmt.Fprintf(w, "%s\t%s\n", t, strings.Join(kw.Descriptors(t), ", "))
		}
		return w.Flush()
	},
}
