package api

import (
	"net/http"
	"strconv"

	"github.com/verdantlabs/pestguard-core/internal/history"
)

// handleListExecutions returns the action execution history,
// filterable by kind and status.
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "history store not configured")
		return
	}

	filter := history.ExecutionFilter{
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}

	result, err := s.repo.ListExecutions(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing executions failed", "error", err)
		writeInternalError(w, "failed to query execution history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListDetections returns the detection history, filterable by
// pest type and tier.
func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "history store not configured")
		return
	}

	filter := history.DetectionFilter{
		PestType: r.URL.Query().Get("pest_type"),
		Tier:     r.URL.Query().Get("tier"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}

	result, err := s.repo.ListDetections(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing detections failed", "error", err)
		writeInternalError(w, "failed to query detection history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// queryInt parses an integer query parameter, returning 0 when absent
// or malformed. The repository clamps ranges.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
