package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/session"
)

const stopTimeout = 10 * time.Second

var runFlags sessionFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one optimization headless",
	Long: `Starts a run against the optimizer, follows it until the generation cap is
reached (or Ctrl-C stops it) and writes final.png, progress.html and
progress.png into the output directory. The run is archived unless
--no-archive is set.`,
	RunE: runOptimization,
}

func init() {
	runFlags.register(runCmd)
	rootCmd.AddCommand(runCmd)
}

func runOptimization(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Poll loops must outlive the signal so Ctrl-C ends in a clean stop.
	a, err := newApp(context.Background(), cfg, &runFlags, true)
	if err != nil {
		return err
	}
	defer a.Close()

	var summary session.Summary
	a.ctrl.AddListener(session.CompletionFunc(func(gen int, dist float64, route []int) {
		slog.Info("Run finished", "best_generation", gen, "best_distance", dist, "route_length", len(route))
	}))
	a.ctrl.AddListener(summaryListener{dst: &summary})

	start := time.Now()
	if err := a.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	runID := a.ctrl.RunID()

	select {
	case <-a.ctrl.Done():
	case <-ctx.Done():
		slog.Info("Interrupted, stopping run", "run_id", runID)
		a.stopRun(stopTimeout)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.ctrl.Wait(waitCtx); err != nil {
		return fmt.Errorf("run did not finish: %w", err)
	}

	if summary.RunID == "" {
		return fmt.Errorf("run %s ended without a result", runID)
	}
	labels := summary.Points.RouteLabels(summary.Best.Route)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s %s after %d generation(s) in %s\n",
		summary.RunID, summary.Outcome, summary.Generations, time.Since(start).Round(time.Millisecond))
	if summary.Generations > 0 {
		fmt.Fprintf(out, "Best distance %.4f at generation %d\n", summary.Best.Distance, summary.Best.Generation)
		fmt.Fprintf(out, "Route: %s\n", strings.Join(labels, " -> "))
		fmt.Fprintf(out, "Wrote outputs to %s\n", a.cfg.OutputDir)
	}
	return nil
}

// summaryListener keeps the summary of the last finished run.
type summaryListener struct {
	session.NopListener
	dst *session.Summary
}

func (l summaryListener) Completed(s session.Summary) {
	*l.dst = s
}
