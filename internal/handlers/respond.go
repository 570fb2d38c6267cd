package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/mentorloop/internal/lifecycle"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

const codeUnauthenticated = "unauthenticated"

var statusByKind = map[lifecycle.Kind]int{
	lifecycle.KindNotFound:           http.StatusNotFound,
	lifecycle.KindForbidden:          http.StatusForbidden,
	lifecycle.KindExpired:            http.StatusUnprocessableEntity,
	lifecycle.KindConflict:           http.StatusConflict,
	lifecycle.KindInvalidState:       http.StatusConflict,
	lifecycle.KindInvalidArgument:    http.StatusBadRequest,
	lifecycle.KindStorageUnavailable: http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, body envelope) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug.Printf("Error encoding response: %v", err)
	}
	return status
}

func respond(w http.ResponseWriter, status int, data interface{}) int {
	return writeJSON(w, status, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string) int {
	return writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: message}})
}

// respondEngineError maps an engine failure to its status. Storage details
// are logged, not returned.
func respondEngineError(w http.ResponseWriter, err error) int {
	kind := lifecycle.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	message := err.Error()
	var engineErr *lifecycle.Error
	if errors.As(err, &engineErr) && engineErr.Msg != "" {
		message = engineErr.Msg
	}
	if kind == lifecycle.KindStorageUnavailable {
		logger.Error.Printf("Storage failure: %v", err)
		message = "storage unavailable, retry later"
	}
	if kind == lifecycle.KindInvalidArgument && engineErr != nil && engineErr.Err != nil {
		message = engineErr.Err.Error()
	}

	return respondError(w, status, string(kind), message)
}
