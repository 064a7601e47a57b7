package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/points"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClient_SetCities(t *testing.T) {
	var got CitiesRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/set_cities", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":"success"}`))
	})

	ps, err := points.New([]points.Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}, {X: 0.5, Y: 0.6}}, 2, 1)
	require.NoError(t, err)

	require.NoError(t, c.SetCities(context.Background(), NewCitiesRequest(ps.Snapshot())))
	assert.Equal(t, [][2]float64{{0.1, 0.2}, {0.3, 0.4}, {0.5, 0.6}}, got.Cities)
	assert.Equal(t, 2, got.Depot)
	assert.Equal(t, 1, got.Final)
}

func TestClient_Configure(t *testing.T) {
	var raw map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/configure", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Write([]byte(`{"status":"success"}`))
	})

	ps, err := points.New([]points.Point{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.4}}, 0, 1)
	require.NoError(t, err)

	require.NoError(t, c.Configure(context.Background(), NewConfigureRequest(config.DefaultSettings(), ps.Snapshot())))
	assert.Equal(t, float64(2), raw["num_cities"])
	assert.Equal(t, float64(100), raw["pop_size"])
	assert.Equal(t, "tournament", raw["selection_method"])
	assert.Equal(t, "ox", raw["crossover_method"])
	assert.Equal(t, "swap", raw["mutation_method"])
	assert.Equal(t, true, raw["elitism"])
	assert.Equal(t, float64(1), raw["final"])
}

func TestClient_Update(t *testing.T) {
	var got UpdateRequest
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"generation": 7, "distance": 3.25, "route": [0, 2, 1]}`))
	})

	res, err := c.Update(context.Background(), UpdateRequest{Running: true, MutationRate: 0.05, SelectionMethod: "roulette"})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Generation)
	assert.Equal(t, 3.25, res.Distance)
	assert.Equal(t, []int{0, 2, 1}, res.Route)
	assert.True(t, got.Running)
	assert.Equal(t, 0.05, got.MutationRate)
	assert.Equal(t, "roulette", got.SelectionMethod)
}

func TestClient_UpdateServerError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "population is empty"}`))
	})

	_, err := c.Update(context.Background(), UpdateRequest{Running: true})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "population is empty", se.Message)
}

func TestClient_PlainTextError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := c.Stop(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "bad gateway", se.Message)
}

func TestClient_MalformedResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := c.Update(context.Background(), UpdateRequest{})
	assert.ErrorContains(t, err, "failed to decode response")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTimeout(20*time.Millisecond))
	_, err := c.Update(context.Background(), UpdateRequest{})
	assert.Error(t, err)
}

func TestClient_CurrentState(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		switch r.URL.Path {
		case "/api/current_state":
			w.Write([]byte(`{"cities": [[0.1,0.2],[0.3,0.4]], "start_index": 1, "generation": 12, "best_distance": 0.9}`))
		case "/api/cities":
			w.Write([]byte(`{"cities": [[0.1,0.2],[0.3,0.4]], "start_index": 1}`))
		default:
			http.NotFound(w, r)
		}
	})

	state, err := c.CurrentState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, state.Generation)
	assert.Equal(t, 0.9, state.BestDistance)
	assert.Equal(t, 1, state.StartIndex)

	cities, err := c.Cities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities.Cities, 2)
}

func TestFake_SynthesizesResults(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, err := f.Update(ctx, UpdateRequest{})
	require.Error(t, err)

	require.NoError(t, f.SetCities(ctx, CitiesRequest{
		Cities: [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
		Depot:  0,
		Final:  0,
	}))

	r1, err := f.Update(ctx, UpdateRequest{})
	require.NoError(t, err)
	r2, err := f.Update(ctx, UpdateRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, r1.Generation)
	assert.Equal(t, 2, r2.Generation)
	assert.Equal(t, 4.0, r1.Distance)
	assert.Less(t, r2.Distance, r1.Distance)
	assert.NoError(t, r1.Validate(4))
}
