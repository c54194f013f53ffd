package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/certforge/certforge/certificate"
	"github.com/certforge/certforge/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func (a *API) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, certificate.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrCASFailed):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, certificate.ErrHashMismatch):
		a.logger.Error("document hash conflict", "error", err)
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, certificate.ErrHashCollision):
		a.logger.Error("document hash integrity violation", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
