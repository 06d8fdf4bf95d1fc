package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-sorter/internal/workspace"
)

// DownloadHandler serves bucket zip archives.
type DownloadHandler struct {
	workspaces *workspace.Manager
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(ws *workspace.Manager) *DownloadHandler {
	return &DownloadHandler{workspaces: ws}
}

// parseBucket validates the bucket URL segment.
func parseBucket(raw string) (workspace.Bucket, bool) {
	switch workspace.Bucket(raw) {
	case workspace.BucketMatched:
		return workspace.BucketMatched, true
	case workspace.BucketNotMatched:
		return workspace.BucketNotMatched, true
	default:
		return "", false
	}
}

// Get streams a run's bucket archive.
func (h *DownloadHandler) Get(w http.ResponseWriter, r *http.Request) {
	bucket, ok := parseBucket(chi.URLParam(r, "bucket"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown bucket")
		return
	}

	// Run ids are always UUIDs; anything else must never reach a
	// filesystem path and reads the same as a run without an archive.
	runID := chi.URLParam(r, "runID")
	if _, err := uuid.Parse(runID); err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s.zip not found", bucket))
		return
	}

	zipPath := h.workspaces.ZipPath(runID, bucket)
	if _, err := os.Stat(zipPath); err != nil {
		respondError(w, http.StatusNotFound, fmt.Sprintf("%s.zip not found", bucket))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.zip"`, bucket))
	http.ServeFile(w, r, zipPath)
}
