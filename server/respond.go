package server

import (
	"encoding/json"
	"net/http"

	"SeekBeat/core/apperr"
	"SeekBeat/logger"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("写入响应失败", logger.ErrorField(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps err to a status and a safe message. Wrapped causes are
// logged only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.String("kind", apperr.KindOf(err).String()),
			logger.ErrorField(err))
	} else {
		logger.Info("request rejected",
			logger.String("path", r.URL.Path),
			logger.String("kind", apperr.KindOf(err).String()),
			logger.ErrorField(err))
	}
	writeJSON(w, status, errorBody{Error: apperr.Message(err)})
}

func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeError(w, r, apperr.New(apperr.InvalidQuery, msg))
}
