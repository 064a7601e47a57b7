package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/optimizer"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the optimizer's current state",
	Long: `Asks the optimizer for its current city list, start index, generation and
best distance. Useful to check that the service is reachable before a run.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = optimizer.DefaultTimeout
	}
	client := optimizer.NewClient(cfg.OptimizerURL, optimizer.WithTimeout(timeout))
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	state, err := client.CurrentState(ctx)
	if err != nil {
		return fmt.Errorf("failed to query optimizer at %s: %w", client.BaseURL(), err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Optimizer: %s\n", client.BaseURL())
	fmt.Fprintf(out, "Cities: %d\n", len(state.Cities))
	fmt.Fprintf(out, "Start Index: %d\n", state.StartIndex)
	fmt.Fprintf(out, "Generation: %d\n", state.Generation)
	if state.Generation > 0 {
		fmt.Fprintf(out, "Best Distance: %.4f\n", state.BestDistance)
	}
	return nil
}
