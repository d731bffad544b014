package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"rackd/internal/node"
)

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondJSON(w, statusForError(err), map[string]any{"error": err.Error()})
}

// statusForError maps the node core's error taxonomy to HTTP status
// codes. Anything unrecognised is a 500.
func statusForError(err error) int {
	var invalidArg *node.InvalidArgumentError
	if errors.As(err, &invalidArg) {
		return http.StatusBadRequest
	}

	var validation *node.ValidationError
	if errors.As(err, &validation) {
		return http.StatusBadRequest
	}

	var duplicate *node.DuplicateNodeError
	if errors.As(err, &duplicate) {
		return http.StatusConflict
	}

	var ruleErr *node.RuleEvaluationError
	if errors.As(err, &ruleErr) {
		return http.StatusBadGateway
	}

	var mgmtErr *node.ManagementError
	if errors.As(err, &mgmtErr) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
