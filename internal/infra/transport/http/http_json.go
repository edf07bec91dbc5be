package http

import (
	"encoding/json"
	"net/http"

	"github.com/mkrupp/worldfan/internal/domain"
)

// WriteJSON writes body as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	//nolint:wrapcheck
	return json.NewEncoder(w).Encode(body)
}

// WriteError writes the structured error body for err. Only the user facing
// message of its class is exposed.
func WriteError(w http.ResponseWriter, err error) error {
	kind := domain.KindOf(err)

	return WriteJSON(w, kind.Status, domain.ErrorResponse{
		Success:  false,
		Verified: false,
		Code:     kind.Code,
		Error:    kind.Message,
	})
}
