package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/backlog-broker/internal/errors"
	"github.com/rs/zerolog"
)

const contentTypeJSON = "application/json"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError logs the full error and sends only its code and public message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := apperrors.HTTPStatus(err)

	logger := zerolog.Ctx(r.Context())
	event := logger.Info()
	if statusCode >= 500 {
		event = logger.Error()
	}
	event.Err(err).Int("status", statusCode).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, statusCode, errorResponse{
		Error:   apperrors.Code(err),
		Message: apperrors.PublicMessage(err),
	})
}
