package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/internal/usecase"
)

var askQuestion string

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a question grounded in your notes",
	Long: `Retrieve the most relevant notes for the question and generate a
reply using them as context.

Example:
  vaultindex ask -q "what were my takeaways from the offsite?"`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	prov, err := newProvider()
	if err != nil {
		return err
	}

	retriever := usecase.NewRetriever(openStore(), prov)
	asker := usecase.NewAsker(retriever, prov, cfg.Search.TopK)

	reply, sources, err := asker.Ask(cmd.Context(), askQuestion)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Println(reply)
	if len(sources) > 0 {
		fmt.Println("\nSources:")
		for _, s := range sources {
			fmt.Printf("  %s (%.4f)\n", s.Entry.ID, s.Score)
		}
	}
	return nil
}
