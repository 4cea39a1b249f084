package middleware

import (
	"encoding/json"
	"net/http"
)

// writeJSONError is the error shape middleware rejections use. Interaction
// responses proper are rendered by the handler package; only requests that
// never reach it (bad signature, rate limit) are answered here.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
