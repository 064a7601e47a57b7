package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
	exportPNG     string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage archived runs",
	Long: `List, inspect and clean runs archived by run, serve and watch.
The archive is chosen with --store and --store-path or the config file.`,
}

var listRunsCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs",
	RunE:  runListRuns,
}

var showRunCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowRun,
}

var deleteRunCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete archived runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeleteRuns,
}

var cleanRunsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old runs",
	Long: `Delete old runs based on a retention policy: keep the newest N runs,
delete runs older than N days, or both.`,
	RunE: runCleanRuns,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(listRunsCmd)
	runsCmd.AddCommand(showRunCmd)
	runsCmd.AddCommand(deleteRunCmd)
	runsCmd.AddCommand(cleanRunsCmd)

	showRunCmd.Flags().StringVar(&exportPNG, "png", "", "Write the archived best route image to this file")

	cleanRunsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N runs (0 = keep all)")
	cleanRunsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete runs older than N days (0 = no age limit)")
	cleanRunsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func openRunStore(cmd *cobra.Command) (store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run archive: %w", err)
	}
	return s, nil
}

func runListRuns(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore(cmd)
	if err != nil {
		return err
	}
	defer runStore.Close()

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	printRuns(cmd.OutOrStdout(), infos)
	return nil
}

func printRuns(out io.Writer, infos []store.RunInfo) {
	if len(infos) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tOUTCOME\tPOINTS\tGENERATIONS\tBEST")
	fmt.Fprintln(w, "------\t-------\t-------\t------\t-----------\t----")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f @%d\n",
			shortID(info.ID),
			info.StartedAt.Local().Format("2006-01-02 15:04:05"),
			info.Outcome,
			info.NumPoints,
			info.Generations,
			info.BestDistance,
			info.BestGeneration,
		)
	}
	w.Flush()
	fmt.Fprintf(out, "\nTotal runs: %d\n", len(infos))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

func runShowRun(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore(cmd)
	if err != nil {
		return err
	}
	defer runStore.Close()

	rec, err := runStore.LoadRun(args[0])
	if err != nil {
		return err
	}
	results, err := runStore.LoadHistory(rec.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printRun(out, rec, results)

	if exportPNG != "" {
		data, err := runStore.LoadArtifact(rec.ID, "best.png")
		if err != nil {
			return fmt.Errorf("failed to load best route image: %w", err)
		}
		if err := os.WriteFile(exportPNG, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportPNG, err)
		}
		fmt.Fprintf(out, "Wrote %s\n", exportPNG)
	}
	return nil
}

func printRun(out io.Writer, rec *store.RunRecord, results []history.GenerationResult) {
	fmt.Fprintf(out, "Run: %s\n", rec.ID)
	fmt.Fprintf(out, "Outcome: %s\n", rec.Outcome)
	fmt.Fprintf(out, "Started: %s\n", rec.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "Duration: %s\n", rec.Duration().Round(time.Millisecond))
	fmt.Fprintln(out)

	printSettings(out, rec.Settings)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Points: %d\n", rec.Points.Len())
	fmt.Fprintf(out, "  Generations: %d\n", rec.Generations)
	if len(results) > 0 {
		first := results[0].Distance
		fmt.Fprintf(out, "  First Distance: %.4f\n", first)
		fmt.Fprintf(out, "  Best Distance: %.4f (generation %d)\n", rec.Best.Distance, rec.Best.Generation)
		if first > 0 {
			improvement := first - rec.Best.Distance
			fmt.Fprintf(out, "  Improvement: %.4f (%.1f%%)\n", improvement, improvement/first*100)
		}
		fmt.Fprintf(out, "  Route: %s\n", strings.Join(rec.Points.RouteLabels(rec.Best.Route), " -> "))
	}
}

func printSettings(out io.Writer, s config.Settings) {
	fmt.Fprintln(out, "Settings:")
	fmt.Fprintf(out, "  Population: %d\n", s.PopulationSize)
	fmt.Fprintf(out, "  Max Generations: %d\n", s.MaxGenerations)
	fmt.Fprintf(out, "  Mutation: %s, rate %g\n", s.MutationMethod, s.MutationRate)
	fmt.Fprintf(out, "  Selection: %s\n", s.SelectionMethod)
	fmt.Fprintf(out, "  Crossover: %s\n", s.CrossoverMethod)
	fmt.Fprintf(out, "  Elitism: %t (%g%%)\n", s.Elitism, s.ElitePercentage)
}

func runDeleteRuns(cmd *cobra.Command, args []string) error {
	runStore, err := openRunStore(cmd)
	if err != nil {
		return err
	}
	defer runStore.Close()

	for _, id := range args {
		if err := runStore.DeleteRun(id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
		slog.Info("Deleted run", "run_id", id)
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}

func runCleanRuns(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	runStore, err := openRunStore(cmd)
	if err != nil {
		return err
	}
	defer runStore.Close()

	infos, err := runStore.ListRuns()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	toDelete := selectRunsForDeletion(infos, keepLast, olderThanDays, time.Now())
	if len(toDelete) == 0 {
		fmt.Fprintln(out, "No runs match deletion criteria.")
		return nil
	}

	fmt.Fprintf(out, "Found %d run(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Fprintf(out, "  - %s (%s, %s)\n",
			shortID(info.ID),
			info.Outcome,
			info.StartedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean && !confirm(cmd.InOrStdin(), out, "\nProceed with deletion? [y/N]: ") {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	deleted, failed := 0, 0
	for _, info := range toDelete {
		if err := runStore.DeleteRun(info.ID); err != nil {
			slog.Error("Failed to delete run", "run_id", info.ID, "error", err)
			failed++
			continue
		}
		slog.Info("Deleted run", "run_id", info.ID)
		deleted++
	}

	fmt.Fprintf(out, "\nDeleted %d run(s), %d failed.\n", deleted, failed)
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}

// selectRunsForDeletion returns the runs older than olderThanDays plus the
// runs beyond the newest keepLast, oldest first. Zero disables a rule.
func selectRunsForDeletion(infos []store.RunInfo, keepLast, olderThanDays int, now time.Time) []store.RunInfo {
	sorted := make([]store.RunInfo, len(infos))
	copy(sorted, infos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.Before(sorted[j].StartedAt)
	})

	cutoff := now.AddDate(0, 0, -olderThanDays)
	excess := 0
	if keepLast > 0 && len(sorted) > keepLast {
		excess = len(sorted) - keepLast
	}

	var toDelete []store.RunInfo
	for i, info := range sorted {
		if i < excess || (olderThanDays > 0 && info.StartedAt.Before(cutoff)) {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}
