package api

import (
	"net/http"
	"time"
)

// handleListChannels returns the channel catalog in provider order.
func (s *Server) handleListChannels(w http.ResponseWriter, _ *http.Request) {
	channels := s.catalog.Channels()
	resp := map[string]any{"channels": channels, "count": len(channels)}
	if at := s.catalog.RefreshedAt(); !at.IsZero() {
		resp["refreshed_at"] = at.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRefreshChannels re-fetches the catalog from the provider.
//
// On failure the previous catalog stays in place and 502 is returned.
func (s *Server) handleRefreshChannels(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.logger.Warn("channel refresh failed", "error", err)
		writeBadGateway(w, "channel refresh failed")
		return
	}

	s.logger.Info("channel catalog refreshed", "channels", s.catalog.Len())
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        s.catalog.Len(),
		"refreshed_at": s.catalog.RefreshedAt().UTC().Format(time.RFC3339),
	})
}
