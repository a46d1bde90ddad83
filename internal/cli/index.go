package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/phuslu/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/internal/adapter/cache"
	"vaultindex/internal/adapter/fs"
	"vaultindex/internal/adapter/store"
	"vaultindex/internal/usecase"
)

var indexModified bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh the vector index",
	Long: `Embed every note in the vault and store the vectors in
.vaultindex/vectors.json. With --modified, only notes that are new or
changed since their last embedding are processed.

Examples:
  vaultindex index .            # Full sync
  vaultindex index --modified . # Incremental sync`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexModified, "modified", false, "only index new or changed notes")
}

func runIndex(cmd *cobra.Command, args []string) error {
	path := vaultDir
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	if err := config.EnsureDataDir(path); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	emb, err := newProvider()
	if err != nil {
		return err
	}

	st := store.New(config.StorePath(path)).WithSampleSize(cfg.Index.SampleSize)
	src := fs.NewVaultSource(path, cfg.Vault.Includes, cfg.Vault.Excludes)

	opts := usecase.IndexerOptions{
		BatchSize:  cfg.Index.BatchSize,
		BatchDelay: cfg.BatchDelay(),
		ContentCap: cfg.Index.ContentCap,
	}

	if cfg.Index.CacheEnabled {
		embedCache, err := cache.Open(config.CachePath(path), emb.ModelName())
		if err != nil {
			log.Warn().Err(err).Msg("embed cache unavailable, continuing without it")
		} else {
			defer embedCache.Close()
			opts.Cache = embedCache
		}
	}

	var bar *progressbar.ProgressBar
	opts.Progress = func(processed, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Embedding"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(processed)
	}

	indexer := usecase.NewIndexer(st, src, emb, opts)

	fmt.Printf("Scanning %s...\n", path)

	var indexed int
	if indexModified {
		indexed, err = indexer.IndexModified(cmd.Context())
	} else {
		indexed, err = indexer.IndexAll(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	stats := st.Stats()
	fmt.Printf("Indexing complete:\n")
	fmt.Printf("  Notes embedded: %d\n", indexed)
	fmt.Printf("  Store entries:  %d\n", stats.EntryCount)
	return nil
}
