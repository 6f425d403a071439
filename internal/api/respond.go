package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/Lmdudester/Garcon/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps err to a status code via apperr.Kind and writes a
// sanitised JSON error body. Internal errors never leak the underlying
// message text to the client; everything else does, since the taxonomy
// exists precisely to make those messages operator-facing.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.StatusCode(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("internal error handling request")
		msg = "internal error"
	}

	writeJSON(w, status, errorBody{Error: msg, Kind: string(kind)})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return apperr.Validation("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("malformed request body: %v", err)
	}
	return nil
}
