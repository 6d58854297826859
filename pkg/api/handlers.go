package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/cuemby/rackmon/pkg/errdefs"
	"github.com/cuemby/rackmon/pkg/log"
	"github.com/cuemby/rackmon/pkg/registry"
	"github.com/cuemby/rackmon/pkg/zones"
	"github.com/gorilla/mux"
)

// maxUpdateBody bounds PATCH payloads
const maxUpdateBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error class to an HTTP status
func statusFor(err error) int {
	switch errdefs.ClassOf(err) {
	case errdefs.ClassInvalidInput:
		return http.StatusBadRequest
	case errdefs.ClassNotFound:
		return http.StatusNotFound
	case errdefs.ClassConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Unconfigured is not a failure: it is answered with
// an empty zone list and an informational message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errdefs.IsUnconfigured(err) {
		writeJSON(w, http.StatusOK, zones.Summary{Zones: []zones.ZoneEntry{}, Information: errdefs.Message(err)})
		return
	}

	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logger := log.WithRequestID(requestIDFrom(r.Context()))
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, code, errorBody{Error: errdefs.Message(err)})
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	summary, err := s.zones.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) describeZone(w http.ResponseWriter, r *http.Request) {
	desc, err := s.zones.Describe(r.Context(), mux.Vars(r)["zone"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) listServiceStatus(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.StatusList(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) describeService(w http.ResponseWriter, r *http.Request) {
	desc, err := s.registry.Describe(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (s *Server) updateServices(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return
		}
		writeError(w, r, errdefs.InvalidInput("Invalid request format"))
		return
	}

	var opts registry.UpdateOptions
	if v := r.URL.Query().Get("dry_run"); v != "" {
		opts.DryRun, err = strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, errdefs.InvalidInput("dry_run must be a boolean"))
			return
		}
	}

	res, err := s.registry.Update(r.Context(), body, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
