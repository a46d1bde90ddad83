package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vaultindex/internal/adapter/fs"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := openStore()
		stats := st.Stats()

		fmt.Printf("Entries:      %d\n", stats.EntryCount)
		fmt.Printf("Last indexed: %s\n", stats.LastIndexed)

		src := fs.NewVaultSource(vaultDir, cfg.Vault.Includes, cfg.Vault.Excludes)
		needs, err := st.NeedsFullReindex(src)
		if err != nil {
			return err
		}
		if needs {
			fmt.Println("Index looks stale; run 'vaultindex index'.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
