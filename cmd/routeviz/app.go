package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/optimizer"
	"github.com/cwbudde/routeviz/internal/points"
	"github.com/cwbudde/routeviz/internal/session"
	"github.com/cwbudde/routeviz/internal/store"
	"github.com/cwbudde/routeviz/internal/viz"
)

// sessionFlags are shared by the commands that drive a run.
type sessionFlags struct {
	pointsPath  string
	numPoints   int
	generations int
	seed        int64
	outDir      string
	noArchive   bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pointsPath, "points", "", "Point set file written by 'routeviz points' (default: random points)")
	cmd.Flags().IntVar(&f.numPoints, "num-points", 0, "Number of random points (overrides config)")
	cmd.Flags().IntVar(&f.generations, "generations", 0, "Maximum generations (overrides config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed for point generation (0 = time-based)")
	cmd.Flags().StringVar(&f.outDir, "out", "", "Directory for final.png and the progress chart (overrides config)")
	cmd.Flags().BoolVar(&f.noArchive, "no-archive", false, "Do not archive finished runs")
}

// app is one wired session: points, optimizer client, controller, display
// and archive.
type app struct {
	cfg     config.Config
	rng     *rand.Rand
	points  *points.PointSet
	client  *optimizer.Client
	ctrl    *session.Controller
	display *viz.Display
	runs    store.Store
}

// newApp wires a session. ctx is the parent of every poll loop. The display
// writes its outputs only when writeOutputs is set.
func newApp(ctx context.Context, cfg config.Config, f *sessionFlags, writeOutputs bool) (*app, error) {
	if f.numPoints > 0 {
		cfg.Settings.NumPoints = f.numPoints
	}
	if f.generations > 0 {
		cfg.Settings.MaxGenerations = f.generations
	}
	if f.seed != 0 {
		cfg.Seed = f.seed
	}
	if f.outDir != "" {
		cfg.OutputDir = f.outDir
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	var ps *points.PointSet
	var err error
	if f.pointsPath != "" {
		ps, err = points.Load(f.pointsPath)
		if err == nil {
			cfg.Settings.NumPoints = ps.Len()
		}
	} else {
		ps, err = points.Generate(cfg.Settings.NumPoints, rng)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to prepare points: %w", err)
	}

	a := &app{
		cfg:    cfg,
		rng:    rng,
		points: ps,
		client: optimizer.NewClient(cfg.OptimizerURL, optimizer.WithTimeout(cfg.RequestTimeout)),
	}

	a.ctrl = session.New(ps, a.client, cfg.Settings, session.WithContext(ctx))

	opts := []viz.Option{viz.WithSize(cfg.CanvasWidth, cfg.CanvasHeight)}
	if writeOutputs {
		opts = append(opts, viz.WithOutputDir(cfg.OutputDir))
	}
	a.display = viz.New(ps, a.ctrl.History(), opts...)
	a.ctrl.AddListener(a.display)

	if !f.noArchive {
		runs, err := store.Open(cfg.StoreDriver, cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run archive: %w", err)
		}
		a.runs = runs
		a.ctrl.AddListener(session.NewArchiver(runs, a.display.Preview))
	}

	slog.Debug("Session wired",
		"optimizer", cfg.OptimizerURL,
		"points", ps.Len(),
		"seed", seed,
		"store", cfg.StoreDriver,
		"archive", !f.noArchive,
	)
	return a, nil
}

// Close cancels any active run and closes the archive.
func (a *app) Close() {
	a.ctrl.Close()
	if a.runs != nil {
		if err := a.runs.Close(); err != nil {
			slog.Warn("Failed to close run archive", "error", err)
		}
	}
}

// stopRun stops an active run, waiting up to timeout for the in-flight update.
func (a *app) stopRun(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.ctrl.Stop(ctx); err != nil && !errors.Is(err, session.ErrNotRunning) {
		slog.Warn("Failed to stop run", "error", err)
	}
}
