package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/cwbudde/routeviz/internal/chart"
	"github.com/cwbudde/routeviz/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// indexData is rendered by templates/index.html.
type indexData struct {
	APIPrefix        string
	ChartVar         string
	Status           SessionStatus
	SelectionMethods []string
	CrossoverMethods []string
	MutationMethods  []string
}

// handleIndex handles GET /
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		APIPrefix:        apiPrefix,
		ChartVar:         "goecharts_" + chart.ChartID,
		Status:           s.status(),
		SelectionMethods: config.SelectionMethods,
		CrossoverMethods: config.CrossoverMethods,
		MutationMethods:  config.MutationMethods,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("Failed to render page", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}
