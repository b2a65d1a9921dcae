package main

import (
	"context"
	"fmt"
	"strings"

	"ai-assistant-be/internal/entity"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	resolvePath string
	resolveTier string
	searchLimit int
	searchFloor float64
	fromSeed    string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <query>",
	Short: "Resolve a query to the best page or section",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search knowledge passages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	resolveCmd.Flags().StringVar(&resolvePath, "path", "", "Current page path of the caller")
	resolveCmd.Flags().StringVar(&resolveTier, "tier", "GUEST", "Caller tier (GUEST, TIER1, TIER2, TIER3, ADMIN)")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "Maximum passages")
	searchCmd.Flags().Float64Var(&searchFloor, "min-similarity", -1, "Similarity floor (default from config)")

	for _, c := range []*cobra.Command{resolveCmd, searchCmd} {
		c.Flags().StringVar(&fromSeed, "from-seed", "", "Embed this seed file in memory instead of querying the database")
	}
}

func queryEnv(ctx context.Context) (*env, error) {
	if fromSeed != "" {
		return openSeedEnv(ctx, fromSeed)
	}
	return openEnv()
}

func runResolve(cmd *cobra.Command, args []string) error {
	tier, err := entity.ParseTier(resolveTier)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := queryEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	query := strings.Join(args, " ")
	match := e.resolver().Resolve(ctx, query, resolvePath, tier)
	if match == nil {
		color.Yellow("no destination for %q", query)
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s  %s\n", bold(match.Type), match.Url, match.Title)
	if match.ElementId != "" {
		fmt.Printf("  section #%s on %s\n", match.ElementId, match.PageTitle)
	}
	fmt.Printf("  similarity %.3f  required %s\n", match.Similarity, match.RequiredTier)
	if match.Locked {
		color.Red("  locked for %s", tier)
	}
	if match.IsOnCurrentPage {
		color.Green("  already on this page")
	}
	if match.AlternativeExists {
		fmt.Println("  a close alternative exists")
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	e, err := queryEnv(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	floor := searchFloor
	if floor < 0 {
		floor = e.cfg.Assistant.SearchFloor
	}

	query := strings.Join(args, " ")
	passages := e.retriever().Search(ctx, query, searchLimit, floor)
	if len(passages) == 0 {
		color.Yellow("no passages above %.2f for %q", floor, query)
		return nil
	}

	score := color.New(color.FgCyan).SprintfFunc()
	for i, p := range passages {
		fmt.Printf("%d. %s %s (%s)\n", i+1, score("%.3f", p.Similarity), p.SourceTitle, p.SourceUrl)
		fmt.Printf("   %s\n", preview(p.Content, 160))
	}
	return nil
}

func preview(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
