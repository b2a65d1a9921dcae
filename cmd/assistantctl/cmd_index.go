package main

import (
	"context"
	"fmt"

	"ai-assistant-be/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var reindexFull bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Embed pages, sections and knowledge passages",
	Long: `Embeds every active destination row without a vector. --full clears
existing embeddings first.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexFull, "full", false, "Clear and rebuild all embeddings")
}

func runReindex(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	stats, err := e.indexer().Reindex(ctx, reindexFull)
	if err != nil {
		return err
	}
	printStats(stats)
	return nil
}

func printStats(stats service.IndexStats) {
	label := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("%s pages=%d sections=%d passages=%d", label("indexed"), stats.Pages, stats.Sections, stats.Passages)
	if stats.Failed > 0 {
		fmt.Print(color.RedString(" failed=%d", stats.Failed))
	}
	fmt.Println()
}
