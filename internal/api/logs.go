package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agent-haymaker/haymaker/internal/store"
)

const defaultLogLines = 100

// handleStreamLogs serves deployment logs as server-sent events. With
// ?follow=true the stream stays open until the client disconnects; otherwise
// the most recent ?lines entries are sent followed by a done event.
func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	follow, _ := strconv.ParseBool(r.URL.Query().Get("follow"))
	lines := parseIntQuery(r, "lines", defaultLogLines)

	stream, err := s.orch.Logs(r.Context(), id, follow, lines)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	if err != nil {
		s.logger.Error("open log stream", "deployment_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to open log stream")
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		line, err := stream.Next(r.Context())
		if err == io.EOF {
			// Stream finished; send explicit done event before closing.
			_ = writeSSEEvent(w, "done", "stream complete")
			if canFlush {
				flusher.Flush()
			}
			return
		}
		if err != nil {
			return // Client disconnected or the stream failed.
		}
		if err := writeSSEData(w, line); err != nil {
			return // Write failed (e.g. client gone).
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// writeSSEData writes a log line as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix, per the SSE spec.
func writeSSEData(w http.ResponseWriter, line string) error {
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
