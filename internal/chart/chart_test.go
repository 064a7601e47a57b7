package chart

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/routeviz/internal/history"
)

type drawCall struct {
	kind  string
	route []int
}

type fakeDrawer struct {
	calls []drawCall
}

func (d *fakeDrawer) DrawPoints() {
	d.calls = append(d.calls, drawCall{kind: "points"})
}

func (d *fakeDrawer) DrawRoute(route []int) (int, error) {
	d.calls = append(d.calls, drawCall{kind: "route", route: route})
	return len(route), nil
}

func TestChart_AppendIgnoresOldGenerations(t *testing.T) {
	c := New(nil, nil)
	changes := 0
	c.OnChange(func() { changes++ })

	assert.True(t, c.Append(1, 10.5))
	assert.True(t, c.Append(2, 8.2))
	assert.False(t, c.Append(2, 7.0))
	assert.False(t, c.Append(1, 7.0))
	assert.True(t, c.Append(5, 9.0))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 3, changes)
	assert.Equal(t, []int{1, 2, 5}, c.Series().Generations)

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 4, changes)
}

func TestChart_OnPointSelected(t *testing.T) {
	store := history.NewStore()
	require.NoError(t, store.Append(history.GenerationResult{Generation: 1, Distance: 10.5, Route: []int{0, 1, 2, 3}}))
	require.NoError(t, store.Append(history.GenerationResult{Generation: 2, Distance: 8.2, Route: []int{0, 2, 1, 3}}))

	d := &fakeDrawer{}
	c := New(store, d)

	// A later append must not affect the selection of an earlier generation.
	require.NoError(t, store.Append(history.GenerationResult{Generation: 3, Distance: 9.0, Route: []int{0, 3, 2, 1}}))

	res, ok := c.OnPointSelected(2)
	require.True(t, ok)
	assert.Equal(t, 8.2, res.Distance)
	require.Len(t, d.calls, 2)
	assert.Equal(t, "points", d.calls[0].kind)
	assert.Equal(t, []int{0, 2, 1, 3}, d.calls[1].route)

	_, ok = c.OnPointSelected(42)
	assert.False(t, ok)
	assert.Len(t, d.calls, 2)
}

func TestLookup_Pure(t *testing.T) {
	snap, err := history.FromResults([]history.GenerationResult{
		{Generation: 3, Distance: 1, Route: []int{0, 1}},
		{Generation: 7, Distance: 2, Route: []int{1, 0}},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r, ok := Lookup(snap, 7)
		require.True(t, ok)
		assert.Equal(t, []int{1, 0}, r.Route)
	}
	_, ok := Lookup(snap, 5)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]int{1, 2, 3}, []float64{10.5, 8.2, 9.0})
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 8.2, s.Min)
	assert.Equal(t, 2, s.MinGeneration)
	assert.Equal(t, 9.0, s.Last)
	assert.Equal(t, 3, s.LastGeneration)
	assert.InDelta(t, 9.2333333, s.Mean, 1e-6)
	assert.InDelta(t, (10.5-8.2)/10.5, s.Improvement, 1e-9)

	assert.Equal(t, Summary{}, Summarize(nil, nil))

	single := Summarize([]int{4}, []float64{2})
	assert.Equal(t, 2.0, single.Mean)
	assert.Equal(t, 0.0, single.StdDev)
}

func TestRenderHTML(t *testing.T) {
	c := New(nil, nil)
	c.Append(1, 10.5)
	c.Append(2, 8.2)

	var buf bytes.Buffer
	require.NoError(t, c.RenderHTML(&buf, WithSelectURL("/api/v1/history/")))
	html := buf.String()

	assert.Contains(t, html, "goecharts_"+ChartID)
	assert.Contains(t, html, "Best Distance")
	assert.Contains(t, html, "Generation")
	assert.True(t, strings.Contains(html, "/api/v1/history/"), "click handler missing")
}

func TestRenderPNG(t *testing.T) {
	for _, n := range []int{0, 5} {
		c := New(nil, nil)
		for g := 1; g <= n; g++ {
			c.Append(g, 10/float64(g))
		}

		var buf bytes.Buffer
		require.NoError(t, c.RenderPNG(&buf, 400, 300))
		_, err := png.Decode(&buf)
		require.NoError(t, err)
	}
}
