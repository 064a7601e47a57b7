package main

import (
	"testing"
	"time"

	"github.com/cwbudde/routeviz/internal/store"
)

func testInfos(now time.Time) []store.RunInfo {
	return []store.RunInfo{
		{ID: "run1", StartedAt: now.AddDate(0, 0, -10)}, // 10 days old
		{ID: "run2", StartedAt: now.AddDate(0, 0, -5)},  // 5 days old
		{ID: "run3", StartedAt: now.AddDate(0, 0, -1)},  // 1 day old
		{ID: "run4", StartedAt: now.AddDate(0, 0, -30)}, // 30 days old
	}
}

func ids(infos []store.RunInfo) map[string]bool {
	m := make(map[string]bool, len(infos))
	for _, info := range infos {
		m[info.ID] = true
	}
	return m
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	toDelete := selectRunsForDeletion(testInfos(now), 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	got := ids(toDelete)
	if !got["run1"] || !got["run4"] {
		t.Errorf("Expected run1 and run4 to be selected for deletion, got %v", got)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	toDelete := selectRunsForDeletion(testInfos(now), 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	// Oldest first.
	if toDelete[0].ID != "run4" || toDelete[1].ID != "run1" {
		t.Errorf("Expected [run4 run1], got [%s %s]", toDelete[0].ID, toDelete[1].ID)
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	// keep-last 3 removes run4; older-than 7 adds run1.
	toDelete := selectRunsForDeletion(testInfos(now), 3, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	got := ids(toDelete)
	if !got["run1"] || !got["run4"] {
		t.Errorf("Expected run1 and run4, got %v", got)
	}
}

func TestSelectRunsForDeletion_NothingToDelete(t *testing.T) {
	now := time.Now()
	if toDelete := selectRunsForDeletion(testInfos(now), 10, 0, now); len(toDelete) != 0 {
		t.Errorf("Expected nothing to delete with keep-last 10, got %d", len(toDelete))
	}
	if toDelete := selectRunsForDeletion(testInfos(now), 0, 60, now); len(toDelete) != 0 {
		t.Errorf("Expected nothing to delete older than 60 days, got %d", len(toDelete))
	}
	if toDelete := selectRunsForDeletion(nil, 1, 1, now); len(toDelete) != 0 {
		t.Errorf("Expected nothing to delete from an empty list, got %d", len(toDelete))
	}
}

func TestSelectRunsForDeletion_DoesNotReorderInput(t *testing.T) {
	now := time.Now()
	infos := testInfos(now)
	selectRunsForDeletion(infos, 1, 0, now)
	if infos[0].ID != "run1" || infos[3].ID != "run4" {
		t.Error("Input slice was reordered")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789abcdef"); got != "0123456789ab..." {
		t.Errorf("shortID(long) = %q", got)
	}
}
