package server

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/coverletter/internal/store"
	"github.com/jonathan/coverletter/internal/types"
)

// storeError maps store failures to HTTP responses.
func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.errorResponse(w, http.StatusNotFound, "session not found")
	case errors.Is(err, store.ErrQuestionLimit):
		s.errorResponse(w, http.StatusConflict, "question limit reached")
	default:
		s.logger.Printf("[server] %s: %v", op, err)
		s.errorResponse(w, http.StatusInternalServerError, "internal error")
	}
}

// generationError reports a failed model call.
func (s *Server) generationError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("[server] %s: generation failed: %v", op, err)
	s.errorResponse(w, http.StatusBadGateway, "answer generation failed")
}

// validationError reports a rejected request body.
func (s *Server) validationError(w http.ResponseWriter, err error) {
	var fieldErrs validator.ValidationErrors
	var blank *types.BlankFieldError
	switch {
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		s.errorResponse(w, http.StatusBadRequest, "invalid field "+fieldErrs[0].Namespace()+": "+fieldErrs[0].Tag())
	case errors.As(err, &blank):
		s.errorResponse(w, http.StatusBadRequest, blank.Error())
	default:
		s.errorResponse(w, http.StatusBadRequest, err.Error())
	}
}
