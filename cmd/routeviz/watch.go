package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/tui"
)

var (
	watchFlags   sessionFlags
	watchLogFile string
	watchRefresh time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Drive a run from the terminal",
	Long: `Opens a terminal view of the session. Space starts and stops a run, r draws
new random points, the arrow keys browse earlier generations and e exports
the selected route as PNG.`,
	RunE: runWatch,
}

func init() {
	watchFlags.register(watchCmd)
	watchCmd.Flags().StringVar(&watchLogFile, "log-file", "", "Write logs to this file (logs are discarded otherwise)")
	watchCmd.Flags().DurationVar(&watchRefresh, "refresh", 250*time.Millisecond, "Screen refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	// The terminal belongs to the TUI.
	var logOut io.Writer = io.Discard
	if watchLogFile != "" {
		f, err := os.OpenFile(watchLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogger(logOut)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(context.Background(), cfg, &watchFlags, watchFlags.outDir != "")
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.stopRun(stopTimeout)

	return tui.Run(ctx, tui.Config{
		Session:         a.ctrl,
		Viewer:          a.display,
		ExportDir:       a.cfg.OutputDir,
		RefreshInterval: watchRefresh,
		Rand:            a.rng,
	})
}
