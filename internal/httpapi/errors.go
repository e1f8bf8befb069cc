package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/markstur/caikit/internal/status"
	"github.com/markstur/caikit/pkg/types"
)

// writeError maps a core error onto its HTTP status. Categorical codes
// carry their own mapping; anything else is a 500.
func writeError(w http.ResponseWriter, err error) {
	if errIsCanceled(err) {
		// The caller is gone or gave up; 499 in the nginx tradition.
		writeJSONError(w, 499, err.Error())
		return
	}
	var se *status.Error
	if errors.As(err, &se) {
		writeJSONError(w, se.HTTPStatus(), err.Error())
		return
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
