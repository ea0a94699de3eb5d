package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// KML boundary files are static reference data dropped into a directory
// by deployment; the server only lists and serves them.

func (s *Server) handleKMLList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.cfg.KMLDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "kml directory unavailable")
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".kml") {
			names = append(names, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleKMLFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".kml") {
		writeError(w, http.StatusBadRequest, "invalid kml name")
		return
	}
	path := filepath.Join(s.cfg.KMLDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "unknown kml file")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	http.ServeFile(w, r, path)
}
