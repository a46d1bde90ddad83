package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/internal/usecase"
)

var (
	queryText string
	queryTopK int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Find notes similar to a query",
	Long: `Embed the query text and rank indexed notes by cosine similarity.

Example:
  vaultindex query -q "ideas about gardening" -k 10`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "query text (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	emb, err := newProvider()
	if err != nil {
		return err
	}

	k := queryTopK
	if k <= 0 {
		k = cfg.Search.TopK
	}

	retriever := usecase.NewRetriever(openStore(), emb)
	results, err := retriever.Search(cmd.Context(), queryText, k)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results. Run 'vaultindex index' first?")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%2d. %-40s %.4f\n", i+1, r.Entry.ID, r.Score)
		if len(r.Entry.Tags) > 0 {
			fmt.Printf("    tags: %v\n", r.Entry.Tags)
		}
	}
	return nil
}
