package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inference-sim/slo-sim/sim"
	"github.com/inference-sim/slo-sim/sim/session"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEditError maps session and validation errors to status codes.
// Validation failures still report the kept configuration's problems.
func writeEditError(w http.ResponseWriter, err error) {
	var verr *sim.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":    "configuration saved but not applied",
			"problems": verr.Problems,
		})
	case errors.Is(err, session.ErrUnknownBucket), errors.Is(err, session.ErrUnknownMetric):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrLastBucket), errors.Is(err, session.ErrLastMetric):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(into)
}
