package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-discovery/internal/device"
)

// handleListDevices returns all devices ordered by identity.
//
// Query parameters:
//   - category: keep devices whose category equals the value, or whose
//     kind equals it (e.g. "color_light" matches "color_light:rgb")
//   - timed_out: "true" keeps only unavailable devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		s.logger.Error("listing devices", "error", err)
		writeInternalError(w, r, "failed to list devices")
		return
	}

	category := r.URL.Query().Get("category")
	timedOut := r.URL.Query().Get("timed_out") == "true"
	if category != "" || timedOut {
		filtered := make([]device.Device, 0, len(devices))
		for _, d := range devices {
			if category != "" && !matchesCategory(d.Category, category) {
				continue
			}
			if timedOut && !d.TimedOut {
				continue
			}
			filtered = append(filtered, d)
		}
		devices = filtered
	}

	if devices == nil {
		devices = []device.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

func matchesCategory(category, want string) bool {
	if category == want {
		return true
	}
	kind, _, _ := strings.Cut(category, ":")
	return kind == want
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeDeviceNotFound(w, r)
			return
		}
		s.logger.Error("getting device", "id", id, "error", err)
		writeInternalError(w, r, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// handleDeviceStats returns registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

// handleListTopics returns the current subscription set.
func (s *Server) handleListTopics(w http.ResponseWriter, _ *http.Request) {
	topics := s.topics.TopicsOfInterest()
	if topics == nil {
		topics = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "count": len(topics)})
}
