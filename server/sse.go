package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/poiesic/docquery/rag"
)

// streamEvents writes answer events to the client as Server-Sent Events.
// Each frame is a single JSON event: "data: <json>\n\n". The connection
// closes after the terminal event or when the client goes away.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, events <-chan rag.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	// Tell buffering proxies to pass frames through as they arrive
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}

			data, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("error encoding stream event", "err", err)
				return
			}

			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				// Client went away; the query context cancellation stops
				// the producer
				return
			}
			flusher.Flush()
		}
	}
}
