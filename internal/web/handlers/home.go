package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-sorter/internal/config"
)

// HomeHandler reports service status and configured URLs.
type HomeHandler struct {
	config *config.Config
}

// NewHomeHandler creates a new home handler.
func NewHomeHandler(cfg *config.Config) *HomeHandler {
	return &HomeHandler{config: cfg}
}

// Get handles the status endpoint.
func (h *HomeHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":       "Face Sorter backend running",
		"base_url":     h.config.Server.BaseURL,
		"frontend_url": h.config.Server.FrontendURL,
	})
}
