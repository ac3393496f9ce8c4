package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dewansh/dewhome-core/internal/audit"
	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
)

const msgInvalidActionID = "Invalid action ID"

// actionRequest is the body of POST /actions. Enabled defaults to true.
type actionRequest struct {
	Name          string                `json:"name"`
	Type          string                `json:"type"`
	Schedule      string                `json:"schedule"`
	Enabled       *bool                 `json:"enabled"`
	DeviceActions []deviceActionRequest `json:"device_actions"`
}

type deviceActionRequest struct {
	DeviceID     int64  `json:"device_id"`
	ActionType   string `json:"action_type"`
	DelaySeconds int    `json:"delay_seconds"`
}

type actionResponse struct {
	Message string             `json:"message"`
	Action  *automation.Action `json:"action"`
}

type toggleResponse struct {
	Message string `json:"message"`
	Enabled bool   `json:"enabled"`
}

func (req actionRequest) toAction() *automation.Action {
	a := &automation.Action{
		Name:          req.Name,
		Type:          automation.ActionType(req.Type),
		Schedule:      req.Schedule,
		Enabled:       true,
		DeviceActions: make([]automation.DeviceAction, 0, len(req.DeviceActions)),
	}
	if req.Enabled != nil {
		a.Enabled = *req.Enabled
	}
	for _, da := range req.DeviceActions {
		a.DeviceActions = append(a.DeviceActions, automation.DeviceAction{
			DeviceID:     da.DeviceID,
			ActionType:   device.Command(da.ActionType),
			DelaySeconds: da.DelaySeconds,
		})
	}
	return a
}

// handleListActions returns every action with its next run time.
func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	actions := s.actions.ListActions()
	ptrs := make([]*automation.Action, len(actions))
	for i := range actions {
		ptrs[i] = &actions[i]
	}
	s.scheduler.Annotate(ptrs...)
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidActionID)
		return
	}
	a, err := s.actions.GetAction(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.scheduler.Annotate(a)
	writeJSON(w, http.StatusOK, a)
}

// handleCreateAction validates, stores and arms a new action.
func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgInvalidJSON)
		return
	}

	a := req.toAction()
	if err := s.actions.CreateAction(r.Context(), a); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.scheduler.Schedule(a); err != nil {
		s.logger.Warn("created action not scheduled", "action_id", a.ID, "error", err)
	}
	s.scheduler.Annotate(a)

	s.hub.Broadcast(EventActionCreated, a)
	s.recordAudit(r, audit.OpCreate, audit.EntityAction, a.ID, map[string]any{
		"name":     a.Name,
		"type":     string(a.Type),
		"schedule": a.Schedule,
	})
	writeJSON(w, http.StatusCreated, actionResponse{
		Message: fmt.Sprintf("Action %q created", a.Name),
		Action:  a,
	})
}

// handleToggleAction flips the enabled flag and arms or disarms the action.
func (s *Server) handleToggleAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidActionID)
		return
	}

	a, err := s.actions.ToggleEnabled(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	state := "disabled"
	if a.Enabled {
		state = "enabled"
		if err := s.scheduler.Schedule(a); err != nil {
			s.logger.Warn("enabled action not scheduled", "action_id", a.ID, "error", err)
		}
	} else {
		s.scheduler.Unschedule(a.ID)
	}

	s.hub.Broadcast(EventActionToggled, toggleEvent{ID: a.ID, Enabled: a.Enabled})
	s.recordAudit(r, audit.OpToggle, audit.EntityAction, a.ID, map[string]any{"enabled": a.Enabled})
	writeJSON(w, http.StatusOK, toggleResponse{
		Message: fmt.Sprintf("Action %q %s", a.Name, state),
		Enabled: a.Enabled,
	})
}

// handleExecuteAction starts a manual run and returns without waiting for it.
func (s *Server) handleExecuteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidActionID)
		return
	}

	a, err := s.actions.GetAction(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.scheduler.RunNow(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.recordAudit(r, audit.OpExecute, audit.EntityAction, id, nil)
	writeMessage(w, http.StatusAccepted, fmt.Sprintf("Action %q execution started", a.Name))
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidActionID)
		return
	}

	removed, err := s.actions.DeleteAction(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.scheduler.Unschedule(id)

	s.hub.Broadcast(EventActionDeleted, map[string]int64{"id": id})
	s.recordAudit(r, audit.OpDelete, audit.EntityAction, id, map[string]any{"name": removed.Name})
	writeMessage(w, http.StatusOK, fmt.Sprintf("Action %q deleted", removed.Name))
}

// handleListExecutions returns recent runs, newest first.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(r)
	if !ok {
		writeBadRequest(w, msgInvalidActionID)
		return
	}

	limit := automation.DefaultExecutionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, automation.MaxExecutionLimit)
	}

	if _, err := s.actions.GetAction(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	execs, err := s.actions.Repository().ListExecutions(r.Context(), id, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if execs == nil {
		execs = []automation.Execution{}
	}
	writeJSON(w, http.StatusOK, execs)
}
