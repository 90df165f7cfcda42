package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteError writes a JSON error body of the form {"error": message}.
func WriteError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
