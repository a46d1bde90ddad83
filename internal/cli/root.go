package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"vaultindex/config"
	"vaultindex/internal/adapter/embedding"
	"vaultindex/internal/adapter/store"
	"vaultindex/internal/port"
)

var (
	cfgFile  string
	cfg      *config.Config
	vaultDir string
)

var rootCmd = &cobra.Command{
	Use:   "vaultindex",
	Short: "Semantic index over a local note vault",
	Long: `vaultindex maintains a persistent vector index over a directory of
markdown notes and answers similarity queries against it.

Example usage:
  vaultindex index .                   # Build or refresh the index
  vaultindex query -q "pasta recipes"  # Find related notes
  vaultindex ask -q "what did I plan?" # Ask with retrieved context`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// .env is optional; environment variables win either way.
		godotenv.Load()

		if vaultDir == "" {
			vaultDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(vaultDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log.DefaultLogger = log.Logger{
			Level:      log.ParseLevel(cfg.Logging.Level),
			TimeFormat: "15:04:05",
			Writer:     &log.ConsoleWriter{ColorOutput: true, EndWithMessage: true},
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vaultindex.yaml)")
	rootCmd.PersistentFlags().StringVarP(&vaultDir, "dir", "d", "", "vault directory (default is current directory)")
}

func openStore() *store.Store {
	return store.New(config.StorePath(vaultDir)).WithSampleSize(cfg.Index.SampleSize)
}

// provider bundles the two capabilities both backends implement.
type provider interface {
	port.Embedder
	port.Generator
}

func newProvider() (provider, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return embedding.NewOpenAIProvider(
			cfg.Embedding.APIKeyEnv,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Chat.Model,
			cfg.Embedding.Dimension,
			cfg.Chat.Temperature,
		)
	}
}
