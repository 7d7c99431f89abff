package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/boxsync/internal/bridges/horizon"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	Broker        BrokerMetrics   `json:"broker"`
	Session       *SessionMetrics `json:"session,omitempty"`
	Devices       DeviceMetrics   `json:"devices"`
	Catalog       CatalogMetrics  `json:"catalog"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// BrokerMetrics contains the household broker connection state.
type BrokerMetrics struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	ClientID  string `json:"client_id"`
}

// SessionMetrics describes the current provider session.
type SessionMetrics struct {
	Valid       bool   `json:"valid"`
	AcquiredAt  string `json:"acquired_at,omitempty"`
	TokenExpiry string `json:"token_expiry,omitempty"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total     int            `json:"total"`
	Available int            `json:"available"`
	ByState   map[string]int `json:"by_state"`
	BySource  map[string]int `json:"by_source"`
}

// CatalogMetrics contains channel catalog statistics.
type CatalogMetrics struct {
	Channels    int    `json:"channels"`
	RefreshedAt string `json:"refreshed_at,omitempty"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	state := s.bridge.ConnState()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Broker: BrokerMetrics{
			Connected: state == horizon.StateConnected,
			State:     state.String(),
			ClientID:  s.bridge.ClientID(),
		},
		Catalog: CatalogMetrics{
			Channels: s.catalog.Len(),
		},
	}

	if s.sessions != nil {
		creds := s.sessions.Current()
		metrics.Session = &SessionMetrics{Valid: creds.Valid()}
		if !creds.AcquiredAt.IsZero() {
			metrics.Session.AcquiredAt = creds.AcquiredAt.UTC().Format(time.RFC3339)
		}
		if !creds.TokenExpiry.IsZero() {
			metrics.Session.TokenExpiry = creds.TokenExpiry.UTC().Format(time.RFC3339)
		}
	}

	if at := s.catalog.RefreshedAt(); !at.IsZero() {
		metrics.Catalog.RefreshedAt = at.UTC().Format(time.RFC3339)
	}

	// Device registry stats
	regStats := s.registry.Stats()
	metrics.Devices = DeviceMetrics{
		Total:     regStats.TotalDevices,
		Available: regStats.Available,
		ByState:   make(map[string]int),
		BySource:  make(map[string]int),
	}
	for state, count := range regStats.ByState {
		metrics.Devices.ByState[string(state)] = count
	}
	for source, count := range regStats.BySource {
		metrics.Devices.BySource[string(source)] = count
	}

	writeJSON(w, http.StatusOK, metrics)
}
