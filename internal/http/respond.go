package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message in the shape the payment form expects.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func wantsJSON(req *http.Request) bool {
	if req.Method == http.MethodPost && (req.URL.Path == "/payment" || req.URL.Path == "/submit-payment") {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}
