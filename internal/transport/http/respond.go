package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/trinsiklabs/recall/pkg/domainerr"
)

// writeJSON centralizes success envelopes.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler emits the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := domainerr.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(domainerr.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}
