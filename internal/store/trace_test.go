package store

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/routeviz/internal/history"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-t", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	now := time.Now()
	for i, r := range testResults() {
		entry := TraceEntry{Generation: r.Generation, Distance: r.Distance, Route: r.Route, Timestamp: now.Add(time.Duration(i) * time.Second)}
		if err := tw.Write(entry); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(tempDir, "run-t")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[1].Generation != 2 || entries[1].Distance != 8.2 {
		t.Errorf("Entry 1 = %+v", entries[1])
	}
	if !entries[2].Timestamp.Equal(now.Add(2 * time.Second)) {
		t.Errorf("Timestamp not preserved: %v", entries[2].Timestamp)
	}
	if r := entries[0].Result(); r.Generation != 1 || len(r.Route) != 4 {
		t.Errorf("Result() = %+v", r)
	}
}

func TestTraceWriter_Append(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-a", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	if err := tw.WriteResult(testResults()[0]); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	tw.Close()

	tw, err = NewTraceWriter(tempDir, "run-a", true)
	if err != nil {
		t.Fatalf("NewTraceWriter (append) failed: %v", err)
	}
	if err := tw.WriteResult(testResults()[1]); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	tw.Close()

	tr, err := NewTraceReader(tempDir, "run-a")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected 2 entries after append, got %d", len(entries))
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-f", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	defer tw.Close()

	if err := tw.WriteResult(testResults()[0]); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if err := tw.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	info, err := os.Stat(tw.Path())
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Error("Expected flushed data on disk")
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-i", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	for _, r := range testResults() {
		tw.WriteResult(r)
	}
	tw.Close()

	tr, err := NewTraceReader(tempDir, "run-i")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	count := 0
	for {
		entry, err := tr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		count++
		if entry.Generation != count {
			t.Errorf("Entry %d has generation %d", count, entry.Generation)
		}
	}
	if count != 3 {
		t.Errorf("Read %d entries, want 3", count)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTraceWriter_InvalidRunID(t *testing.T) {
	if _, err := NewTraceWriter(t.TempDir(), "a/b", false); err == nil {
		t.Error("Expected error for invalid run ID")
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tempDir := t.TempDir()

	tw, err := NewTraceWriter(tempDir, "run-c", false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			tw.WriteResult(history.GenerationResult{Generation: g, Distance: float64(g), Route: []int{0, 1}})
		}(i)
	}
	wg.Wait()
	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	tr, err := NewTraceReader(tempDir, "run-c")
	if err != nil {
		t.Fatalf("NewTraceReader failed: %v", err)
	}
	defer tr.Close()

	entries, err := tr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed (interleaved lines?): %v", err)
	}
	if len(entries) != n {
		t.Errorf("Expected %d entries, got %d", n, len(entries))
	}
}
