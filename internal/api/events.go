package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/hamevo/internal/model"
)

// handleStreamEvents streams a run's events as SSE. A reconnecting client
// sends the last id it saw in Last-Event-ID (or ?last_event_id=) and gets
// only later events. Finished runs replay their stored events and end.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	last := lastEventID(r)

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeRunError(w, "get run", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if model.IsTerminal(run.Status) {
		w.WriteHeader(http.StatusOK)
		if err := s.replayStoredEvents(w, r, id, &last); err != nil {
			return
		}
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("clear write deadline for SSE", "error", err)
	}

	// The broker replays what the run published before this subscription.
	// A run that finished after the status check has a closed topic, so the
	// loop below falls back to the store.
	ch, unsub := s.engine.Broker().Subscribe(id, last)
	defer unsub()
	sseStreams.Inc()
	defer sseStreams.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				// Catch up on anything the subscription missed.
				if err := s.replayStoredEvents(w, r, id, &last); err != nil {
					return
				}
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if ev.Seq <= last {
				continue
			}
			if err := writeSSEData(w, ev.Seq, ev.Line); err != nil {
				return
			}
			last = ev.Seq
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// replayStoredEvents writes the persisted events of run id with Seq greater
// than *last and advances *last past them.
func (s *Server) replayStoredEvents(w http.ResponseWriter, r *http.Request, id string, last *int) error {
	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get events", "run_id", id, "error", err)
		return err
	}
	for _, ev := range events {
		if ev.Seq <= *last {
			continue
		}
		if err := writeSSEData(w, ev.Seq, ev.Line); err != nil {
			return err
		}
		*last = ev.Seq
	}
	return nil
}

// lastEventID returns the sequence number a reconnecting client last saw, or
// -1 when it sent none.
func lastEventID(r *http.Request) int {
	v := r.Header.Get("Last-Event-ID")
	if v == "" {
		v = r.URL.Query().Get("last_event_id")
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// eventHistoryLine is a single event in the history response.
type eventHistoryLine struct {
	Seq       int    `json:"seq"`
	Line      string `json:"line"`
	CreatedAt string `json:"created_at"`
}

// eventHistoryResponse is the JSON response for GET /v1/runs/{id}/events/history.
type eventHistoryResponse struct {
	RunID  string             `json:"run_id"`
	Status string             `json:"status"`
	Events []eventHistoryLine `json:"events"`
}

func (s *Server) handleGetEventHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		s.writeRunError(w, "get run", err)
		return
	}

	events, err := s.store.GetEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("get events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get events")
		return
	}

	lines := make([]eventHistoryLine, len(events))
	for i, ev := range events {
		lines[i] = eventHistoryLine{
			Seq:       ev.Seq,
			Line:      ev.Line,
			CreatedAt: ev.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, eventHistoryResponse{
		RunID:  id,
		Status: run.Status,
		Events: lines,
	})
}

// writeSSEData writes one event with its sequence number as the SSE id.
// Multi-line strings get one "data:" prefix per line.
func writeSSEData(w http.ResponseWriter, seq int, line string) error {
	if _, err := fmt.Fprintf(w, "id: %d\n", seq); err != nil {
		return err
	}
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
