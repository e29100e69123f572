package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component probe in the health handler.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Post("/action", s.handleSystemAction)
			r.Post("/pest-response", s.handlePestResponse)
			r.Post("/emergency-stop", s.handleEmergencyStop)
		})

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Get("/{id}", s.handleGetSensor)
		})

		r.Get("/history/actions", s.handleListExecutions)
		r.Get("/detections", s.handleListDetections)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports overall health: the rig itself plus whichever
// infrastructure collaborators are attached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]string{
		"system": healthWord(s.system.Running()),
	}
	if s.db != nil {
		components["database"] = errWord(s.db.HealthCheck(ctx))
	}
	if s.mqtt != nil {
		components["mqtt"] = errWord(s.mqtt.HealthCheck(ctx))
	}
	if s.influx != nil {
		components["influxdb"] = errWord(s.influx.HealthCheck(ctx))
	}

	status := http.StatusOK
	overall := "ok"
	for _, v := range components {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			overall = "degraded"
			break
		}
	}

	writeJSON(w, status, map[string]any{
		"status":     overall,
		"version":    s.version,
		"components": components,
	})
}

func healthWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "stopped"
}

func errWord(err error) string {
	if err == nil {
		return "ok"
	}
	return err.Error()
}
