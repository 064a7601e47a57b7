package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/config"
)

var (
	logLevel   string
	configPath string

	optimizerURL string
	storeDriver  string
	storePath    string
)

var rootCmd = &cobra.Command{
	Use:   "routeviz",
	Short: "Drive and visualize a remote route optimizer",
	Long: `routeviz feeds a point set to a remote genetic route optimizer, polls it one
generation at a time and renders the progress as labelled route images, a
distance chart, a web dashboard or a terminal view. Finished runs are archived.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (JSON, comments allowed)")
	rootCmd.PersistentFlags().StringVar(&optimizerURL, "optimizer", "", "Optimizer base URL (default "+config.DefaultOptimizerURL+")")
	rootCmd.PersistentFlags().StringVar(&storeDriver, "store", "", "Run archive driver: fs or sqlite")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "Run archive directory (fs) or database file (sqlite)")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupLogger(w io.Writer) {
	opts := &slog.HandlerOptions{Level: parseLevel(logLevel)}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, opts)))
}

// loadConfig resolves the config file and the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("optimizer") {
		cfg.OptimizerURL = optimizerURL
	}
	if flags.Changed("store") {
		cfg.StoreDriver = storeDriver
	}
	if flags.Changed("store-path") {
		cfg.StorePath = storePath
	}
	if cfg.OptimizerURL == "" {
		return cfg, fmt.Errorf("optimizer URL cannot be empty")
	}
	return cfg, nil
}
