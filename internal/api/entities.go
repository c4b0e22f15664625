package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/smarthome-bridge/internal/entity"
)

// EntityResponse is an entity's projection plus the actions it accepts.
type EntityResponse struct {
	entity.State
	Actions []string `json:"actions"`
}

func entityResponse(e entity.Entity) EntityResponse {
	return EntityResponse{State: e.State(), Actions: e.Actions()}
}

// handleListEntities returns every entity, optionally filtered by ?kind=
// and ?device_id=.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind := entity.Kind(r.URL.Query().Get("kind"))
	deviceID := r.URL.Query().Get("device_id")
	if len(kind) > maxQueryParamLen || len(deviceID) > maxQueryParamLen {
		writeBadRequest(w, "query parameter exceeds maximum length")
		return
	}

	var list []entity.Entity
	if deviceID != "" {
		list = s.entities.ByDevice(deviceID)
	} else {
		list = s.entities.List()
	}

	out := make([]EntityResponse, 0, len(list))
	for _, e := range list {
		if kind != "" && e.Kind() != kind {
			continue
		}
		out = append(out, entityResponse(e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": out,
		"count":    len(out),
	})
}

// handleGetEntity returns one entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	e, err := s.entities.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, entityResponse(e))
}

// handleEntityAction performs an action. The optional body is the params object.
func (s *Server) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")
	if len(id) > maxQueryParamLen || len(action) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity ID or action")
		return
	}

	var params map[string]any
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.entities.Do(r.Context(), id, action, params); err != nil {
		writeActionError(w, err)
		return
	}

	s.logger.Info("entity action sent", "entity_id", id, "action", action)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"entity_id": id,
		"action":    action,
		"status":    "accepted",
	})
}

// writeActionError maps entity errors to responses. Anything unrecognised
// is a hub failure.
func writeActionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		writeNotFound(w, "entity not found")
	case errors.Is(err, entity.ErrUnknownAction):
		writeError(w, http.StatusBadRequest, ErrCodeUnknownAction, err.Error())
	case errors.Is(err, entity.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, entity.ErrUnsupported):
		writeError(w, http.StatusConflict, ErrCodeUnsupported, err.Error())
	default:
		writeHubError(w, "hub rejected command: "+err.Error())
	}
}

// handleReloadEntities rebuilds the entity set from the current device metadata.
func (s *Server) handleReloadEntities(w http.ResponseWriter, _ *http.Request) {
	n := s.entities.Reload(s.coord.Devices())
	s.logger.Info("entities reloaded", "count", n)
	s.hub.PublishStates(s.entities.States())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  n,
	})
}
