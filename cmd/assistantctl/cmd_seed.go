package main

import (
	"context"
	"fmt"
	"os"

	"ai-assistant-be/internal/seed"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	seedEmbed       bool
	seedConcurrency int
)

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load providers, models, personas, destinations and knowledge sources",
	Long: `Reads a YAML seed file and upserts its catalog and destination rows in a
single transaction. Knowledge sources are chunked and embedded concurrently.
With --embed, page and section embeddings are rebuilt afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedEmbed, "embed", false, "Embed pages and sections after seeding")
	seedCmd.Flags().IntVar(&seedConcurrency, "concurrency", 4, "Knowledge sources ingested in parallel")
}

func runSeed(cmd *cobra.Command, args []string) error {
	fh, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer fh.Close()

	file, err := seed.Load(fh)
	if err != nil {
		return err
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	indexer := e.indexer()
	sum, err := seed.Apply(ctx, e.uowFactory, indexer, file, seedConcurrency)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Printf("%s providers=%d models=%d personas=%d pages=%d sections=%d sources=%d passages=%d users=%d\n",
		ok("seeded"), sum.Providers, sum.Models, sum.Personas, sum.Pages, sum.Sections, sum.Sources, sum.Passages, sum.Users)

	if !seedEmbed {
		return nil
	}
	stats, err := indexer.Reindex(ctx, false)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	printStats(stats)
	return nil
}
