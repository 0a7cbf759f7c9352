package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg} with the given status code, plus
// {"kind": kind} when kind is set.
func WriteError(w http.ResponseWriter, status int, kind, msg string) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = kind
	}
	WriteJSON(w, status, body)
}
