package middleware

import (
	"encoding/json"
	"net/http"
)

// WriteError renders the JSON error body shared by every riskd handler.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
