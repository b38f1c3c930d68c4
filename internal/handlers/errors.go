package handlers

import (
	"encoding/json"
	"net/http"
)

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Success     bool              `json:"success"`
	Data        any               `json:"data,omitempty"`
	Message     string            `json:"message"`
	Error       string            `json:"error,omitempty"`
	Errors      map[string]string `json:"errors,omitempty"`
	UnreadCount *int64            `json:"unread_count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	e := envelope{Success: false, Message: message}
	if err != nil {
		e.Error = err.Error()
	}
	writeJSON(w, status, e)
}

func writeValidation(w http.ResponseWriter, errs map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{
		Success: false,
		Message: "validation failed",
		Errors:  errs,
	})
}
