package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/boxsync/internal/bridges/horizon"
	"github.com/nerrad567/boxsync/internal/device"
	"github.com/nerrad567/boxsync/internal/infrastructure/mqtt"
)

// DeviceCommand is the request body for POST /devices/{id}/commands.
type DeviceCommand struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
}

// SourceRequest is the request body for PUT /devices/{id}/source.
type SourceRequest struct {
	Title string `json:"title"`
}

// handleListDevices returns all registered set-top boxes.
//
// Query parameters:
//   - state: filter by connectivity state (ONLINE_RUNNING, ONLINE_STANDBY, UNKNOWN)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.List()

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := make([]device.Device, 0, len(devices))
		for _, d := range devices {
			if string(d.State) == state {
				filtered = append(filtered, d)
			}
		}
		devices = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.registry.Get(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeviceStats returns registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Stats())
}

// handleDeviceCommand sends a remote-control command to a box.
//
// The command is published to the broker and the response is 202 Accepted.
// A command whose precondition does not hold (e.g. turn_on while running)
// is accepted and silently dropped. The resulting state arrives through
// the box's next status message.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cmd DeviceCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.Command == "" {
		writeBadRequest(w, "command field is required")
		return
	}

	var err error
	switch cmd.Command {
	case "turn_on":
		err = s.bridge.TurnOn(id)
	case "turn_off":
		err = s.bridge.TurnOff(id)
	case "pause":
		err = s.bridge.Pause(id)
	case "play":
		err = s.bridge.Play(id)
	case "next_channel":
		err = s.bridge.NextChannel(id)
	case "previous_channel":
		err = s.bridge.PreviousChannel(id)
	case "press_key":
		err = s.bridge.PressKey(id, cmd.Key)
	default:
		writeBadRequest(w, "unknown command: "+cmd.Command)
		return
	}
	if err != nil {
		s.writeCommandError(w, id, cmd.Command, err)
		return
	}

	s.logger.Info("device command sent", "device_id", id, "command", cmd.Command, "key", cmd.Key)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"command": cmd.Command,
	})
}

// handleSelectSource tunes a box to a channel by its catalog title.
func (s *Server) handleSelectSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req SourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title field is required")
		return
	}

	if err := s.bridge.SelectSource(id, req.Title); err != nil {
		s.writeCommandError(w, id, "select_source", err)
		return
	}

	s.logger.Info("source selected", "device_id", id, "title", req.Title)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"title":  req.Title,
	})
}

// writeCommandError maps a bridge command error onto an HTTP response.
func (s *Server) writeCommandError(w http.ResponseWriter, id, command string, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, horizon.ErrSourceNotFound):
		writeNotFound(w, "source not found")
	case errors.Is(err, horizon.ErrInvalidKey):
		writeBadRequest(w, "key field is required")
	case errors.Is(err, mqtt.ErrNotConnected):
		writeUnavailable(w, "broker not connected")
	default:
		s.logger.Warn("device command failed", "device_id", id, "command", command, "error", err)
		writeInternalError(w, "failed to send command")
	}
}
