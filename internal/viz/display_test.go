package viz

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/optimizer"
	"github.com/cwbudde/routeviz/internal/points"
	"github.com/cwbudde/routeviz/internal/render"
	"github.com/cwbudde/routeviz/internal/session"
)

func square(t *testing.T) *points.PointSet {
	t.Helper()
	ps, err := points.New([]points.Point{
		{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9},
	}, 0, 0)
	require.NoError(t, err)
	return ps
}

func runToCompletion(t *testing.T, d *Display, ps *points.PointSet, h *history.Store) *session.Controller {
	t.Helper()

	fake := optimizer.NewFake().Queue(
		history.GenerationResult{Generation: 1, Distance: 10.5, Route: []int{0, 1, 2, 3}},
		history.GenerationResult{Generation: 2, Distance: 8.2, Route: []int{0, 2, 1, 3}},
		history.GenerationResult{Generation: 3, Distance: 9.0, Route: []int{0, 3, 2, 1}},
	)
	settings := config.DefaultSettings()
	settings.MaxGenerations = 3
	settings.EvolutionSpeedMS = 1

	c := session.New(ps, fake, settings, session.WithHistory(h), session.WithListener(d))
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	return c
}

func TestDisplay_FollowsRun(t *testing.T) {
	ps := square(t)
	h := history.NewStore()
	outDir := filepath.Join(t.TempDir(), "out")
	d := New(ps, h, WithSize(200, 150), WithOutputDir(outDir))

	runToCompletion(t, d, ps, h)

	series := d.Chart().Series()
	assert.Equal(t, []int{1, 2, 3}, series.Generations)
	assert.Equal(t, []float64{10.5, 8.2, 9.0}, series.Distances)
	assert.Equal(t, h.Series().Distances, series.Distances)

	final, ok := d.FinalPNG()
	require.True(t, ok)
	img, err := png.Decode(bytes.NewReader(final))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())

	for _, name := range []string{FinalImage, ProgressHTML, ProgressPNG} {
		info, err := os.Stat(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		assert.NotZero(t, info.Size(), name)
	}

	html, err := os.ReadFile(filepath.Join(outDir, ProgressHTML))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "Best Distance"))
}

func TestDisplay_ResetOnNewRun(t *testing.T) {
	ps := square(t)
	h := history.NewStore()
	d := New(ps, h, WithSize(100, 100))

	d.Chart().Append(7, 1.0)
	d.StateChanged(session.StateIdle, session.StateRunning)

	assert.Equal(t, 0, d.Chart().Len())
	_, ok := d.FinalPNG()
	assert.False(t, ok)
}

func TestDisplay_SelectEarlierGeneration(t *testing.T) {
	ps := square(t)
	h := history.NewStore()
	d := New(ps, h, WithSize(100, 100))

	runToCompletion(t, d, ps, h)

	res, ok := d.Select(1)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2, 3}, res.Route)

	_, ok = d.Select(42)
	assert.False(t, ok)
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func samePixels(a, b image.Image) bool {
	if a.Bounds() != b.Bounds() {
		return false
	}
	for y := a.Bounds().Min.Y; y < a.Bounds().Max.Y; y++ {
		for x := a.Bounds().Min.X; x < a.Bounds().Max.X; x++ {
			if color.RGBAModel.Convert(a.At(x, y)) != color.RGBAModel.Convert(b.At(x, y)) {
				return false
			}
		}
	}
	return true
}

func TestDisplay_SelectWhileRunning(t *testing.T) {
	ps := square(t)
	h := history.NewStore()
	d := New(ps, h, WithSize(120, 90))

	routes := map[int][]int{
		1: {0, 1, 2, 3},
		2: {0, 2, 1, 3},
		3: {0, 3, 2, 1},
	}
	release := make(chan struct{})
	inFlight := make(chan struct{}, 1)
	var mu sync.Mutex
	gen := 0

	fake := optimizer.NewFake()
	fake.UpdateFunc = func(ctx context.Context, req optimizer.UpdateRequest) (history.GenerationResult, error) {
		mu.Lock()
		gen++
		g := gen
		mu.Unlock()
		if g == 3 {
			inFlight <- struct{}{}
			<-release
		}
		return history.GenerationResult{Generation: g, Distance: 10 - float64(g), Route: routes[g]}, nil
	}

	settings := config.DefaultSettings()
	settings.MaxGenerations = 3
	settings.EvolutionSpeedMS = 1
	c := session.New(ps, fake, settings, session.WithHistory(h), session.WithListener(d))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	select {
	case <-inFlight:
	case <-time.After(5 * time.Second):
		t.Fatal("update 3 never dispatched")
	}
	require.Equal(t, session.StateRunning, c.State())
	require.Equal(t, 2, h.Len())

	res, ok := d.Select(1)
	require.True(t, ok)
	assert.Equal(t, routes[1], res.Route)
	assert.Equal(t, 9.0, res.Distance)

	canvas, err := d.CanvasPNG()
	require.NoError(t, err)
	want, err := d.RoutePNG(ps, routes[1])
	require.NoError(t, err)
	live, err := d.RoutePNG(ps, routes[2])
	require.NoError(t, err)

	got := decodePNG(t, canvas)
	assert.True(t, samePixels(got, decodePNG(t, want)), "canvas shows generation 1")
	assert.False(t, samePixels(got, decodePNG(t, live)), "canvas does not show the live route")

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	assert.Equal(t, 3, h.Len())
}

func TestDisplay_Preview(t *testing.T) {
	ps := square(t)
	d := New(ps, history.NewStore(), WithSize(400, 300))

	data, err := d.Preview(session.Summary{
		Points: ps.Snapshot(),
		Best:   history.GenerationResult{Generation: 1, Distance: 3.2, Route: []int{0, 1, 2, 3}},
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 192, img.Bounds().Dy())
}

func TestDisplay_RoutePNGRejectsBadRoute(t *testing.T) {
	ps := square(t)
	d := New(ps, history.NewStore(), WithSize(100, 100))

	_, err := d.RoutePNG(ps, []int{0, 9})
	assert.ErrorIs(t, err, render.ErrInvalidRoute)

	data, err := d.RoutePNG(render.Static(ps.Snapshot()), []int{0, 1, 2, 3})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestDisplay_WriteOutputsWithoutRun(t *testing.T) {
	ps := square(t)
	d := New(ps, history.NewStore(), WithSize(100, 100))
	d.Renderer().DrawPoints()

	dir := t.TempDir()
	require.NoError(t, d.WriteOutputs(dir))
	_, err := os.Stat(filepath.Join(dir, FinalImage))
	assert.NoError(t, err)
}
