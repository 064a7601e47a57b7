package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/optimizer"
	"github.com/cwbudde/routeviz/internal/points"
	"github.com/cwbudde/routeviz/internal/store"
	"github.com/cwbudde/routeviz/internal/viz"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--log-level=error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// fakeOptimizer serves the optimizer HTTP protocol. Each update returns the
// next generation with an identity route and a shrinking distance.
type fakeOptimizer struct {
	mu         sync.Mutex
	cities     int
	generation int
}

func (f *fakeOptimizer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/api/configure", "/api/stop":
		w.Write([]byte(`{"status":"success"}`))
	case "/api/set_cities":
		var req optimizer.CitiesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.cities = len(req.Cities)
		f.generation = 0
		w.Write([]byte(`{"status":"success"}`))
	case "/api/update":
		f.generation++
		route := make([]int, f.cities)
		for i := range route {
			route[i] = i
		}
		json.NewEncoder(w).Encode(history.GenerationResult{
			Generation: f.generation,
			Distance:   10 / float64(f.generation),
			Route:      route,
		})
	case "/api/current_state":
		json.NewEncoder(w).Encode(optimizer.StateResponse{
			Cities:       make([][2]float64, f.cities),
			Generation:   f.generation,
			BestDistance: 1.25,
		})
	default:
		http.NotFound(w, r)
	}
}

func TestPointsGenerateAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.json")

	out, err := execute(t, "points", "generate", "-n", "6", "--seed", "7", "--start", "1", "--final", "1", "-o", path)
	if err != nil {
		t.Fatalf("points generate failed: %v", err)
	}
	if !strings.Contains(out, "Wrote 6 points") {
		t.Errorf("Unexpected output: %s", out)
	}

	ps, err := points.Load(path)
	if err != nil {
		t.Fatalf("Failed to load generated points: %v", err)
	}
	if ps.Len() != 6 || ps.Start() != 1 || ps.Final() != 1 {
		t.Errorf("Got %d points, start %d, final %d", ps.Len(), ps.Start(), ps.Final())
	}

	out, err = execute(t, "points", "show", path)
	if err != nil {
		t.Fatalf("points show failed: %v", err)
	}
	for _, want := range []string{"City 1", "City 6", "start+final", "6 points, closed tour"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestPointsGenerate_TooFew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.json")
	if _, err := execute(t, "points", "generate", "-n", "1", "-o", path); err == nil {
		t.Error("Expected error for a single point")
	}
}

func TestRunArchiveAndInspect(t *testing.T) {
	srv := httptest.NewServer(&fakeOptimizer{})
	defer srv.Close()

	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	archive := filepath.Join(dir, "runs.db")
	common := []string{"--optimizer", srv.URL, "--store", "sqlite", "--store-path", archive}

	args := append([]string{"run", "--num-points", "5", "--generations", "4", "--seed", "3", "--out", outDir}, common...)
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "completed after 4 generation(s)") {
		t.Errorf("Unexpected run output:\n%s", out)
	}
	if !strings.Contains(out, "Best distance 2.5000 at generation 4") {
		t.Errorf("Expected best at generation 4:\n%s", out)
	}
	for _, name := range []string{viz.FinalImage, viz.ProgressHTML, viz.ProgressPNG} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("Expected %s to be written: %v", name, err)
		}
	}

	runs, err := store.Open(store.DriverSQLite, archive)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	infos, err := runs.ListRuns()
	runs.Close()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("Expected 1 archived run, got %d", len(infos))
	}
	id := infos[0].ID

	out, err = execute(t, append([]string{"runs", "list"}, common...)...)
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	if !strings.Contains(out, "Total runs: 1") || !strings.Contains(out, "completed") {
		t.Errorf("Unexpected list output:\n%s", out)
	}

	png := filepath.Join(dir, "best.png")
	out, err = execute(t, append([]string{"runs", "show", id, "--png", png}, common...)...)
	if err != nil {
		t.Fatalf("runs show failed: %v", err)
	}
	for _, want := range []string{"Run: " + id, "Generations: 4", "Best Distance: 2.5000 (generation 4)", "City 1 -> City 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if data, err := os.ReadFile(png); err != nil || len(data) == 0 {
		t.Errorf("Expected exported best.png: %v", err)
	}

	out, err = execute(t, append([]string{"runs", "clean", "--keep-last", "0", "--older-than", "0"}, common...)...)
	if err == nil {
		t.Errorf("Expected clean without a policy to fail, got:\n%s", out)
	}

	if _, err := execute(t, append([]string{"runs", "delete", id}, common...)...); err != nil {
		t.Fatalf("runs delete failed: %v", err)
	}
	out, err = execute(t, append([]string{"runs", "list"}, common...)...)
	if err != nil {
		t.Fatalf("runs list failed: %v", err)
	}
	if !strings.Contains(out, "No runs found.") {
		t.Errorf("Expected empty archive:\n%s", out)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(&fakeOptimizer{cities: 3, generation: 12})
	defer srv.Close()

	out, err := execute(t, "status", "--optimizer", srv.URL)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	for _, want := range []string{"Cities: 3", "Generation: 12", "Best Distance: 1.2500"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
}

func TestStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if _, err := execute(t, "status", "--optimizer", url); err == nil {
		t.Error("Expected error for an unreachable optimizer")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "routeviz version "+version) {
		t.Errorf("Unexpected output: %s", out)
	}
}
