package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/etherealheim/aria/core/temporal"
)

var (
	searchLimit     int
	searchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve past messages by meaning, keyword, and time",
	Long: `Search fuses dense vector search with keyword search and ranks the
merged results. When the query contains a time reference ("last week",
"2026-W4", "3 days ago") the matching date range is resolved and
messages from that period are listed as well.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (defaults from config)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -1, "dense similarity threshold (defaults from config)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.close()

	query := strings.Join(args, " ")
	limit := searchLimit
	if limit <= 0 {
		limit = app.config.Retrieval.Limit
	}
	threshold := searchThreshold
	if threshold < 0 {
		threshold = app.config.Retrieval.SimilarityThreshold
	}

	engine, err := app.newRetrievalEngine()
	if err != nil {
		return err
	}
	results := engine.Retrieve(cmd.Context(), query, limit, threshold)
	if len(results) == 0 {
		fmt.Println("no matches")
	}
	for i, msg := range results {
		fmt.Printf("%2d. [%s] %-9s %.4f  %s\n", i+1, msg.Timestamp, msg.Source, msg.Score, msg.Content)
	}

	if ref := temporal.Resolve(query, time.Now()); ref != nil {
		printTimeWindow(app, ref)
	}
	return nil
}

func printTimeWindow(app *appContext, ref *temporal.DateReference) {
	r := ref.AsRange()
	messages, err := app.storage.Messages().LoadMessagesInRange(r)
	if err != nil {
		app.logger.Warn("time-window load failed", "error", err)
		return
	}
	fmt.Printf("\ntime window %s .. %s (%d messages)\n",
		r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"), len(messages))
	for _, msg := range messages {
		fmt.Printf("  [%s] %s: %s\n", msg.CreatedAt.Format("2006-01-02 15:04"), msg.Role, msg.Content)
	}

	summaries, err := app.storage.Messages().LoadSummariesInRange(r)
	if err != nil {
		app.logger.Warn("time-window summaries failed", "error", err)
		return
	}
	for _, summary := range summaries {
		fmt.Printf("  summary: %s\n", summary)
	}
}
