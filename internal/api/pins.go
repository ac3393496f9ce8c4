package api

import (
	"net/http"

	"github.com/dewansh/dewhome-core/internal/gpio"
)

// pinStatus is a catalog pin with its current binding.
type pinStatus struct {
	gpio.Pin
	InUse    bool   `json:"in_use"`
	DeviceID *int64 `json:"device_id"`
}

// handleListUsablePins returns catalog pins that are neither reserved nor bound.
func (s *Server) handleListUsablePins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Usable(s.registry.PinsInUse()))
}

// handleListPins returns the whole catalog with the device bound to each pin.
func (s *Server) handleListPins(w http.ResponseWriter, _ *http.Request) {
	all := s.catalog.All()
	out := make([]pinStatus, 0, len(all))
	for _, p := range all {
		ps := pinStatus{Pin: p}
		if id, ok := s.registry.DevicePinned(p.Number); ok {
			ps.InUse = true
			ps.DeviceID = &id
		}
		out = append(out, ps)
	}
	writeJSON(w, http.StatusOK, out)
}
