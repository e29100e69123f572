package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/verdantlabs/pestguard-core/internal/dispatch"
	"github.com/verdantlabs/pestguard-core/internal/orchestrator"
)

// maxActionDuration caps relay windows requested through the API.
const maxActionDuration = 10 * time.Minute

// actionRequest is the body for POST /system/action.
type actionRequest struct {
	Kind            string  `json:"kind"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Angle           int     `json:"angle,omitempty"`
}

// handleSystemStatus returns a snapshot of the whole rig.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.system.Status())
}

// handleSystemAction queues one manual action, bypassing the risk policy.
func (s *Server) handleSystemAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	action, err := buildAction(req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.system.SubmitAction(action); err != nil {
		switch {
		case errors.Is(err, dispatch.ErrStopped):
			writeError(w, http.StatusConflict, ErrCodeConflict, "system is not running")
		case errors.Is(err, dispatch.ErrQueueFull):
			writeError(w, http.StatusServiceUnavailable, ErrCodeConflict, "action queue is full")
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": true,
		"kind":   action.Kind(),
		"detail": action.Describe(),
	})
}

// handlePestResponse runs a detection through the risk policy and
// queues the resulting action bundle.
func (s *Server) handlePestResponse(w http.ResponseWriter, r *http.Request) {
	var det orchestrator.Detection
	if err := json.NewDecoder(r.Body).Decode(&det); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	resp, err := s.system.TriggerResponse(r.Context(), det)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleEmergencyStop queues an emergency shutdown.
func (s *Server) handleEmergencyStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.system.EmergencyStop(); err != nil {
		if errors.Is(err, dispatch.ErrStopped) {
			writeError(w, http.StatusConflict, ErrCodeConflict, "system is not running")
			return
		}
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"queued": true, "kind": dispatch.KindEmergencyShutdown})
}

// buildAction validates an action request and maps it onto a dispatch
// action value.
func buildAction(req actionRequest) (dispatch.Action, error) {
	duration := time.Duration(req.DurationSeconds * float64(time.Second))
	if duration < 0 || duration > maxActionDuration {
		return nil, errors.New("duration_seconds must be between 0 and 600")
	}

	switch req.Kind {
	case dispatch.KindSprayPesticide:
		return dispatch.SprayPesticide{Duration: duration}, nil
	case dispatch.KindActivateTrap:
		return dispatch.ActivateTrap{Duration: duration}, nil
	case dispatch.KindAdjustCamera:
		return dispatch.AdjustCamera{Angle: req.Angle}, nil
	case dispatch.KindEmergencyShutdown:
		return dispatch.EmergencyShutdown{}, nil
	default:
		return nil, errors.New("unknown action kind: " + req.Kind)
	}
}
