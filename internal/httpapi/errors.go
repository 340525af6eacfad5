package httpapi

import (
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/abhisek/pathwise/internal/graph"
	"github.com/abhisek/pathwise/internal/store"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	var ve *graph.ValidationError
	switch {
	case errors.Is(err, graph.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, graph.ErrCourseMismatch):
		return http.StatusInternalServerError, "CourseMismatch"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, string(ve.Kind)
	default:
		return http.StatusInternalServerError, ""
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	s.respondJSON(w, status, errorBody{Error: errorDetail{Code: status, Kind: kind, Message: err.Error()}})
}

func (s *Server) respondBadRequest(w http.ResponseWriter, msg string) {
	s.respondJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: http.StatusBadRequest, Kind: "BadRequest", Message: msg}})
}
