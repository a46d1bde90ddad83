package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all entries from the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStore()
		before := st.Count()
		if err := st.Clear(); err != nil {
			return fmt.Errorf("clear failed: %w", err)
		}
		fmt.Printf("Removed %d entries.\n", before)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
