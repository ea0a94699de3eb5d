package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"swim_feed/internal/fanout"
)

// handleStream is the legacy HTTP streaming binding: the response stays
// open and envelopes are written as newline-delimited JSON, flushed
// after every line.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	facility := chi.URLParam(r, "facility")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := fanout.NewClient("dstars:"+r.RemoteAddr, facility, 0)
	s.hub.Add(client)
	defer s.hub.Remove(client)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-client.Done():
			return
		case env := <-client.C():
			_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := enc.Encode(env); err != nil {
				s.log.Debug("stream write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
