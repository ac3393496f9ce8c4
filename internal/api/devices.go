package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dewansh/dewhome-core/internal/audit"
	"github.com/dewansh/dewhome-core/internal/device"
)

const (
	msgInvalidDeviceID = "Invalid device ID"
	msgInvalidAction   = "Invalid action"
	msgInvalidJSON     = "invalid JSON body"
)

// controlRequest is the body of POST /device. device_id may be a number
// or a numeric string.
type controlRequest struct {
	DeviceID json.RawMessage `json:"device_id"`
	Action   string          `json:"action"`
}

type controlResponse struct {
	Message string       `json:"message"`
	State   device.State `json:"state"`
}

type createDeviceRequest struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	PinNumber int    `json:"pin_number"`
}

type deviceResponse struct {
	Message string         `json:"message"`
	Device  *device.Device `json:"device"`
}

// handleListDevices returns every device, or with ?format=states a map of
// device ID to state.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "states" {
		states := s.registry.States()
		out := make(map[string]device.State, len(states))
		for id, st := range states {
			out[strconv.FormatInt(id, 10)] = st
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	writeJSON(w, http.StatusOK, s.registry.ListDevices())
}

// handleControlDevice drives a device high, low or toggles it.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	id, ok := parseRawID(req.DeviceID)
	if !ok {
		writeBadRequest(w, msgInvalidDeviceID)
		return
	}
	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		writeBadRequest(w, msgInvalidDeviceID)
		return
	}

	cmd, err := device.ParseCommand(req.Action)
	if err != nil {
		writeBadRequest(w, msgInvalidAction)
		return
	}

	d, err := s.devices.Apply(r.Context(), id, cmd, device.SourceAPI)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeBadRequest(w, msgInvalidDeviceID)
			return
		}
		s.writeDomainError(w, r, err)
		return
	}

	s.recordAudit(r, audit.OpCommand, audit.EntityDevice, d.ID, map[string]any{
		"command": string(cmd),
		"state":   string(d.State),
	})
	writeJSON(w, http.StatusOK, controlResponse{
		Message: fmt.Sprintf("Device %d turned %s", d.ID, d.State),
		State:   d.State,
	})
}

// handleCreateDevice registers a device and configures its pin.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	d := &device.Device{
		Name:      req.Name,
		Icon:      req.Icon,
		PinNumber: req.PinNumber,
	}
	if err := s.devices.AddDevice(r.Context(), d); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.hub.Broadcast(EventDeviceCreated, d)
	s.recordAudit(r, audit.OpCreate, audit.EntityDevice, d.ID, map[string]any{
		"name":       d.Name,
		"pin_number": d.PinNumber,
	})
	writeJSON(w, http.StatusCreated, deviceResponse{
		Message: fmt.Sprintf("Device %q created on pin %d", d.Name, d.PinNumber),
		Device:  d,
	})
}

// handleDeleteDevice removes a device unless an action still uses it.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidDeviceID)
		return
	}

	if refs := s.actions.ActionsForDevice(id); len(refs) > 0 {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("%s: device %d is used by %d action(s)", device.ErrDeviceInUse, id, len(refs)))
		return
	}

	removed, err := s.devices.RemoveDevice(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.hub.Broadcast(EventDeviceDeleted, map[string]int64{"id": id})
	s.recordAudit(r, audit.OpDelete, audit.EntityDevice, id, map[string]any{
		"name":       removed.Name,
		"pin_number": removed.PinNumber,
	})
	writeMessage(w, http.StatusOK, fmt.Sprintf("Device %q deleted", removed.Name))
}

// parsePathID parses the {id} URL parameter as a positive integer.
func parsePathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// parseRawID accepts 3 or "3".
func parseRawID(raw json.RawMessage) (int64, bool) {
	text := strings.TrimSpace(string(raw))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	id, err := strconv.ParseInt(text, 10, 64)
	return id, err == nil && id > 0
}
