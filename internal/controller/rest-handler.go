package controller

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// listVideos returns the sorted playable item identifiers the sync protocol
// references.
func (c controller) listVideos(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(c.videoDir)
	if err != nil {
		c.logger.ErrorContext(r.Context(), "failed to read video dir", "dir", c.videoDir, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	videos := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".mp4") {
			videos = append(videos, entry.Name())
		}
	}
	sort.Strings(videos)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	if err := json.NewEncoder(w).Encode(videos); err != nil {
		c.logger.WarnContext(r.Context(), "failed to write video list", "error", err)
	}
}

// serveVideo serves file bytes with range support (http.ServeFile handles
// Range headers), guarding against path traversal.
func (c controller) serveVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	videoDir, err := filepath.Abs(c.videoDir)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	path := filepath.Join(videoDir, filepath.Clean("/"+name))
	if !strings.HasPrefix(path, videoDir+string(os.PathSeparator)) {
		c.logger.WarnContext(r.Context(), "path traversal attempt", "remote_addr", clientIP(r), "path", name)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.logger.WarnContext(r.Context(), "video not found", "remote_addr", clientIP(r), "path", name)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	http.ServeFile(w, r, path)
}
