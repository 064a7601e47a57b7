package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/cwbudde/routeviz/internal/chart"
	"github.com/cwbudde/routeviz/internal/config"
	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/render"
	"github.com/cwbudde/routeviz/internal/session"
)

const (
	chartPNGWidth  = 800
	chartPNGHeight = 400
)

// RouteView is a generation result with the labels of its route in visit
// order.
type RouteView struct {
	Generation int      `json:"generation"`
	Distance   float64  `json:"distance"`
	Route      []int    `json:"route"`
	Labels     []string `json:"labels"`
}

func (s *Server) routeView(r history.GenerationResult) *RouteView {
	return &RouteView{
		Generation: r.Generation,
		Distance:   r.Distance,
		Route:      r.Route,
		Labels:     s.ctrl.Points().Snapshot().RouteLabels(r.Route),
	}
}

// SessionStatus is the response of GET /api/v1/session.
type SessionStatus struct {
	State       session.State   `json:"state"`
	RunID       string          `json:"run_id,omitempty"`
	Generations int             `json:"generations"`
	Last        *RouteView      `json:"last,omitempty"`
	Best        *RouteView      `json:"best,omitempty"`
	Frozen      bool            `json:"frozen"`
	Settings    config.Settings `json:"settings"`
	Summary     chart.Summary   `json:"summary"`
}

func (s *Server) status() SessionStatus {
	snap := s.ctrl.History().Snapshot()
	st := SessionStatus{
		State:       s.ctrl.State(),
		RunID:       s.ctrl.RunID(),
		Generations: snap.Len(),
		Frozen:      s.ctrl.Points().Frozen(),
		Settings:    s.ctrl.Settings(),
		Summary:     s.display.Chart().Summary(),
	}
	if last, ok := snap.Last(); ok {
		st.Last = s.routeView(last)
	}
	if best, ok := snap.Best(); ok {
		st.Best = s.routeView(best)
	}
	return st
}

// handleSession handles GET /api/v1/session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

// handleStart handles POST /api/v1/session/start
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.status())
}

// handleStop handles POST /api/v1/session/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Stop(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleToggle handles POST /api/v1/session/toggle
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Toggle(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleGetSettings handles GET /api/v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Settings())
}

// handlePutSettings handles PUT /api/v1/settings. Fields missing from the
// body keep their current value. A changed num_points resizes the point set.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := s.ctrl.Settings()
	if err := decodeJSON(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := settings.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}

	// Resize before committing so a refused resize leaves the settings untouched.
	resized := false
	if settings.NumPoints != s.ctrl.Points().Len() {
		s.rngMu.Lock()
		err := s.ctrl.Points().Resize(settings.NumPoints, s.rng)
		s.rngMu.Unlock()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resized = true
	}
	err := s.ctrl.SetSettings(settings)
	if resized {
		s.pointsChanged()
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleGetPoints handles GET /api/v1/points
func (s *Server) handleGetPoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Points().Snapshot())
}

// handleRandomize handles POST /api/v1/points/randomize
func (s *Server) handleRandomize(w http.ResponseWriter, r *http.Request) {
	s.rngMu.Lock()
	err := s.ctrl.Points().Randomize(s.rng)
	s.rngMu.Unlock()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.pointsChanged()
	writeJSON(w, http.StatusOK, s.ctrl.Points().Snapshot())
}

// pointPatch is the body of PATCH /api/v1/points/{index}.
type pointPatch struct {
	X     *float64 `json:"x,omitempty"`
	Y     *float64 `json:"y,omitempty"`
	Label *string  `json:"label,omitempty"`
}

// handlePatchPoint handles PATCH /api/v1/points/{index}
func (s *Server) handlePatchPoint(w http.ResponseWriter, r *http.Request) {
	idx, err := pathInt(r, "index")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var patch pointPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if patch.X == nil && patch.Y == nil && patch.Label == nil {
		writeError(w, http.StatusBadRequest, errors.New("nothing to change"))
		return
	}
	if (patch.X == nil) != (patch.Y == nil) {
		writeError(w, http.StatusBadRequest, errors.New("x and y must be given together"))
		return
	}

	ps := s.ctrl.Points()
	if patch.X != nil {
		if err := ps.Move(idx, *patch.X, *patch.Y); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	if patch.Label != nil {
		if err := ps.Rename(idx, *patch.Label); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	s.pointsChanged()
	writeJSON(w, http.StatusOK, ps.Snapshot().Points[idx])
}

type anchorsRequest struct {
	Start int `json:"start"`
	Final int `json:"final"`
}

// handleAnchors handles PUT /api/v1/points/anchors
func (s *Server) handleAnchors(w http.ResponseWriter, r *http.Request) {
	var req anchorsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.Points().SetAnchors(req.Start, req.Final); err != nil {
		writeDomainError(w, err)
		return
	}
	s.pointsChanged()
	writeJSON(w, http.StatusOK, s.ctrl.Points().Snapshot())
}

// pointsChanged redraws the point layer and notifies stream clients.
func (s *Server) pointsChanged() {
	s.display.Renderer().DrawPoints()
	s.broadcaster.Broadcast(ProgressEvent{Type: EventPoints, State: s.ctrl.State()})
}

// handleHistory handles GET /api/v1/history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.History().Results())
}

func (s *Server) lookupGeneration(w http.ResponseWriter, r *http.Request) (history.GenerationResult, bool) {
	g, err := pathInt(r, "generation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return history.GenerationResult{}, false
	}
	res, ok := chart.Lookup(s.ctrl.History().Snapshot(), g)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("generation not found"))
		return history.GenerationResult{}, false
	}
	return res, true
}

// handleGeneration handles GET /api/v1/history/{generation}
func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookupGeneration(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.routeView(res))
}

// handleGenerationImage handles GET /api/v1/history/{generation}/route.png
func (s *Server) handleGenerationImage(w http.ResponseWriter, r *http.Request) {
	res, ok := s.lookupGeneration(w, r)
	if !ok {
		return
	}
	data, err := s.display.RoutePNG(s.ctrl.Points(), res.Route)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePNG(w, data)
}

// handleSelect handles POST /api/v1/history/{generation}/select. The chart
// posts here when a point is clicked; the canvas then shows that route.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	g, err := pathInt(r, "generation")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, ok := s.display.Select(g)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("generation not found"))
		return
	}
	s.broadcaster.Broadcast(ProgressEvent{
		Type:       EventSelected,
		RunID:      s.ctrl.RunID(),
		State:      s.ctrl.State(),
		Generation: res.Generation,
		Distance:   res.Distance,
	})
	writeJSON(w, http.StatusOK, s.routeView(res))
}

// handleCanvas handles GET /api/v1/canvas.png
func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	data, err := s.display.CanvasPNG()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePNG(w, data)
}

// handleBestImage handles GET /api/v1/best.png
func (s *Server) handleBestImage(w http.ResponseWriter, r *http.Request) {
	if s.ctrl.State() == session.StateIdle {
		if data, ok := s.display.FinalPNG(); ok {
			writePNG(w, data)
			return
		}
	}
	best, ok := s.ctrl.Best()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("no results yet"))
		return
	}
	data, err := s.display.RoutePNG(s.ctrl.Points(), best.Route)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePNG(w, data)
}

// handleChart handles GET /api/v1/chart
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := s.display.Chart().RenderHTML(&buf,
		chart.WithSize("100%", "380px"),
		chart.WithSelectURL(apiPrefix+"/history/"),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleChartImage handles GET /api/v1/chart.png
func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.display.Chart().RenderPNG(&buf, chartPNGWidth, chartPNGHeight); err != nil {
		writeDomainError(w, err)
		return
	}
	writePNG(w, buf.Bytes())
}

var errNoStore = errors.New("run archive is not configured")

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	infos, err := s.runs.ListRuns()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetRun handles GET /api/v1/runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	rec, err := s.runs.LoadRun(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteRun handles DELETE /api/v1/runs/{id}
func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	if err := s.runs.DeleteRun(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRunHistory handles GET /api/v1/runs/{id}/history
func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	results, err := s.runs.LoadHistory(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleRunImage handles GET /api/v1/runs/{id}/best.png. Runs archived
// without a preview are rendered from their record.
func (s *Server) handleRunImage(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, errNoStore)
		return
	}
	id := r.PathValue("id")
	data, err := s.runs.LoadArtifact(id, "best.png")
	if err == nil {
		writePNG(w, data)
		return
	}

	rec, lerr := s.runs.LoadRun(id)
	if lerr != nil {
		writeDomainError(w, lerr)
		return
	}
	if rec.Generations == 0 {
		writeDomainError(w, err)
		return
	}
	data, err = s.display.RoutePNG(render.Static(rec.Points), rec.Best.Route)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writePNG(w, data)
}
