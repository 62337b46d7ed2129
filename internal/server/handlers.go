package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/models"
	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error string `json:"error"`
}

type addCameraRequest struct {
	Location string `json:"location"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

type pendingResponse struct {
	Location string `json:"location"`
	Status   string `json:"status"`
	Error    string `json:"error"`
}

// statusFor maps coordinator errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, coordinator.ErrAlreadyTracked):
		return http.StatusConflict
	case errors.Is(err, coordinator.ErrNotTracked):
		return http.StatusNotFound
	case errors.Is(err, coordinator.ErrAuthFailed),
		errors.Is(err, coordinator.ErrUpdateFailed),
		errors.Is(err, coordinator.ErrDetectionFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"cameras": len(s.cameras.Locations()),
	})
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cameras.States())
}

func (s *Server) addCamera(w http.ResponseWriter, r *http.Request) {
	var req addCameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Location = strings.TrimSpace(req.Location)
	if req.Location == "" {
		writeError(w, http.StatusBadRequest, "location is required")
		return
	}

	c, err := s.cameras.Add(r.Context(), req.Location)
	if errors.Is(err, coordinator.ErrSetupRetry) {
		s.logger.Warn("camera_add_pending", "location", req.Location, "request_id", r.Header.Get(RequestIDHeader), "err", err)
		writeJSON(w, http.StatusAccepted, pendingResponse{Location: req.Location, Status: "pending", Error: err.Error()})
		return
	}
	if err != nil {
		s.logger.Warn("camera_add_failed", "location", req.Location, "request_id", r.Header.Get(RequestIDHeader), "err", err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	state, _ := c.State()
	writeJSON(w, http.StatusCreated, state)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (models.CameraState, bool) {
	location := mux.Vars(r)["location"]
	c, ok := s.cameras.Get(location)
	if !ok {
		writeError(w, http.StatusNotFound, "camera not tracked: "+location)
		return models.CameraState{}, false
	}
	state, ok := c.State()
	if !ok {
		writeError(w, http.StatusNotFound, "no data yet for "+location)
		return models.CameraState{}, false
	}
	return state, true
}

func (s *Server) getCamera(w http.ResponseWriter, r *http.Request) {
	if state, ok := s.lookup(w, r); ok {
		writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) removeCamera(w http.ResponseWriter, r *http.Request) {
	if err := s.cameras.Remove(mux.Vars(r)["location"]); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	state, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if len(state.Image) == 0 {
		writeError(w, http.StatusNotFound, "camera has no image")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(state.Image))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(state.Image)
}

// getStatistics returns the recorded history of a location, optionally
// limited to the inclusive range given by the from and to query parameters.
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	location := mux.Vars(r)["location"]
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")

	if from == "" && to == "" {
		points, err := s.history.Query(r.Context(), location)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, points)
		return
	}

	start, end, err := models.ParseRange(from, to, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	points, err := s.history.QueryRange(r.Context(), location, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) listCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusNotImplemented, "catalog not configured")
		return
	}
	cameras, err := s.catalog.ListCameras(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cameras)
}
