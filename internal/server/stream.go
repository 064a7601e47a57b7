package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwbudde/routeviz/internal/history"
	"github.com/cwbudde/routeviz/internal/session"
)

// Event types sent on the stream.
const (
	EventState      = "state"
	EventGeneration = "generation"
	EventCompleted  = "completed"
	EventFailed     = "failed"
	EventSelected   = "selected"
	EventPoints     = "points"
)

// ProgressEvent represents a session update event
type ProgressEvent struct {
	Type           string        `json:"type"`
	RunID          string        `json:"run_id,omitempty"`
	State          session.State `json:"state"`
	Generation     int           `json:"generation,omitempty"`
	Distance       float64       `json:"distance"`
	BestGeneration int           `json:"best_generation,omitempty"`
	BestDistance   float64       `json:"best_distance"`
	Outcome        string        `json:"outcome,omitempty"`
	Error          string        `json:"error,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// EventBroadcaster fans events out to SSE clients. New clients receive the
// last event first.
type EventBroadcaster struct {
	mu        sync.Mutex
	clients   map[chan ProgressEvent]bool
	lastEvent *ProgressEvent
	closed    bool
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients: make(map[chan ProgressEvent]bool),
	}
}

// Subscribe adds a client. The returned channel is closed by Unsubscribe or
// Close.
func (eb *EventBroadcaster) Subscribe() chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 16) // Buffered to prevent blocking
	if eb.closed {
		close(ch)
		return ch
	}
	eb.clients[ch] = true

	// Send last event if available (for reconnecting clients)
	if eb.lastEvent != nil {
		ch <- *eb.lastEvent
	}

	slog.Debug("SSE client subscribed", "total_clients", len(eb.clients))
	return ch
}

// Unsubscribe removes a client from receiving events
func (eb *EventBroadcaster) Unsubscribe(ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.clients[ch] {
		delete(eb.clients, ch)
		close(ch)
	}
	slog.Debug("SSE client unsubscribed", "total_clients", len(eb.clients))
}

// Broadcast sends an event to all subscribed clients
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return
	}
	eb.lastEvent = &event

	for ch := range eb.clients {
		select {
		case ch <- event:
		default:
			// Channel full, skip this client (prevents blocking)
			slog.Warn("SSE channel full, skipping event", "type", event.Type)
		}
	}
}

// Clients returns the number of subscribed clients.
func (eb *EventBroadcaster) Clients() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return len(eb.clients)
}

// Close disconnects every client.
func (eb *EventBroadcaster) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for ch := range eb.clients {
		close(ch)
	}
	eb.clients = make(map[chan ProgressEvent]bool)
	eb.closed = true
}

// eventListener turns session events into stream events.
type eventListener struct {
	s *Server
}

func (l *eventListener) StateChanged(from, to session.State) {
	l.s.broadcaster.Broadcast(ProgressEvent{
		Type:      EventState,
		RunID:     l.s.ctrl.RunID(),
		State:     to,
		Timestamp: time.Now(),
	})
}

func (l *eventListener) GenerationAppended(result, best history.GenerationResult) {
	l.s.broadcaster.Broadcast(ProgressEvent{
		Type:           EventGeneration,
		RunID:          l.s.ctrl.RunID(),
		State:          l.s.ctrl.State(),
		Generation:     result.Generation,
		Distance:       result.Distance,
		BestGeneration: best.Generation,
		BestDistance:   best.Distance,
		Timestamp:      time.Now(),
	})
}

func (l *eventListener) Completed(summary session.Summary) {
	l.s.broadcaster.Broadcast(ProgressEvent{
		Type:           EventCompleted,
		RunID:          summary.RunID,
		State:          session.StateIdle,
		Generation:     summary.Generations,
		BestGeneration: summary.Best.Generation,
		BestDistance:   summary.Best.Distance,
		Outcome:        string(summary.Outcome),
		Timestamp:      time.Now(),
	})
}

func (l *eventListener) Failed(err error) {
	l.s.broadcaster.Broadcast(ProgressEvent{
		Type:      EventFailed,
		State:     l.s.ctrl.State(),
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// handleStream handles GET /api/v1/stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Get flusher
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(eventChan)

	// Send initial event with current session state
	initial := ProgressEvent{
		Type:      EventState,
		RunID:     s.ctrl.RunID(),
		State:     s.ctrl.State(),
		Timestamp: time.Now(),
	}
	if best, ok := s.ctrl.Best(); ok {
		initial.BestGeneration = best.Generation
		initial.BestDistance = best.Distance
	}
	if last, ok := s.ctrl.History().Last(); ok {
		initial.Generation = last.Generation
		initial.Distance = last.Distance
	}
	if err := writeSSEEvent(w, initial); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	// Set up ping ticker to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			slog.Debug("SSE client disconnected")
			return

		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-pingTicker.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes an event in SSE format
func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// SSE format: "event: <type>\ndata: {json}\n\n"
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}
