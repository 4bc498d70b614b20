package handlers

import (
	"encoding/json"
	"net/http"
)

// respondJSON writes v as the JSON response body. Encoding errors are
// ignored; by this point the status line has already gone out.
func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
