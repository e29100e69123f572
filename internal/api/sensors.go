package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/verdantlabs/pestguard-core/internal/sensor"
)

// sensorView joins a sensor's configuration with its latest reading.
type sensorView struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Unit     string          `json:"unit"`
	Interval int64           `json:"interval_ms"`
	Latest   *sensor.Reading `json:"latest,omitempty"`
}

// handleListSensors returns every configured sensor with its latest reading.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	hub := s.system.Sensors()
	latest := hub.SnapshotAll()

	views := make([]sensorView, 0)
	for _, sn := range hub.Sensors() {
		view := sensorView{
			ID:       sn.ID,
			Type:     sn.Type,
			Unit:     sn.Unit,
			Interval: sn.Interval.Milliseconds(),
		}
		if r, ok := latest[sn.ID]; ok {
			reading := r
			view.Latest = &reading
		}
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"sensors": views})
}

// handleGetSensor returns the latest reading for one sensor.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	reading, ok, err := s.system.Sensors().Snapshot(id)
	if err != nil {
		writeNotFound(w, "unknown sensor: "+id)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"sensor_id": id, "latest": nil})
		return
	}

	writeJSON(w, http.StatusOK, reading)
}
