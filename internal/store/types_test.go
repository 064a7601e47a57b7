package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/routeviz/internal/history"
)

func TestRunRecord_JSONFieldNames(t *testing.T) {
	rec := createTestRecord("run-json", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, field := range []string{`"id"`, `"outcome"`, `"started_at"`, `"ended_at"`, `"settings"`, `"points"`, `"best"`, `"generations"`} {
		if !strings.Contains(string(data), field) {
			t.Errorf("Expected field %s in %s", field, data)
		}
	}
}

func TestRunRecord_Validate(t *testing.T) {
	started := time.Now()

	tests := []struct {
		name   string
		modify func(r *RunRecord)
		field  string
	}{
		{"valid", func(r *RunRecord) {}, ""},
		{"empty id", func(r *RunRecord) { r.ID = "" }, "ID"},
		{"empty outcome", func(r *RunRecord) { r.Outcome = "" }, "Outcome"},
		{"zero start", func(r *RunRecord) { r.StartedAt = time.Time{} }, "StartedAt"},
		{"end before start", func(r *RunRecord) { r.EndedAt = started.Add(-time.Second) }, "EndedAt"},
		{"bad anchors", func(r *RunRecord) { r.Points.Start = 9 }, "Points"},
		{"negative generations", func(r *RunRecord) { r.Generations = -1 }, "Generations"},
		{"best not a permutation", func(r *RunRecord) { r.Best.Route = []int{0, 1} }, "Best"},
		{"no generations skips best", func(r *RunRecord) {
			r.Generations = 0
			r.Best = history.GenerationResult{}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := createTestRecord("run-v", started)
			tt.modify(rec)

			err := rec.Validate()
			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected valid record, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

func TestRunRecord_ToInfo(t *testing.T) {
	rec := createTestRecord("run-info", time.Now())
	info := rec.ToInfo()

	if info.ID != "run-info" || info.Outcome != "completed" {
		t.Errorf("Unexpected identity: %+v", info)
	}
	if info.NumPoints != 4 || info.Generations != 3 {
		t.Errorf("Unexpected counts: %+v", info)
	}
	if info.BestDistance != 8.2 || info.BestGeneration != 2 {
		t.Errorf("Unexpected best: %+v", info)
	}
}

func TestCheckArtifactName(t *testing.T) {
	for _, name := range []string{"best.png", "progress.html", "final_route-1.png"} {
		if err := checkArtifactName(name); err != nil {
			t.Errorf("%q rejected: %v", name, err)
		}
	}
	for _, name := range []string{"", ".", "..", "a/b.png", "..\\x"} {
		if err := checkArtifactName(name); err == nil {
			t.Errorf("%q accepted", name)
		}
	}
}
