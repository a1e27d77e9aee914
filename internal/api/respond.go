package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	errorsmod "cosmossdk.io/errors"
	"github.com/google/uuid"

	"pat-settlement/internal/domain"
)

// Codespace of errors raised by the transport itself.
const Codespace = "api"

var (
	ErrBadRequest          = errorsmod.Register(Codespace, 2, "bad request")
	ErrUnauthenticated     = errorsmod.Register(Codespace, 3, "unauthenticated")
	ErrIdempotencyMismatch = errorsmod.Register(Codespace, 4, "idempotency key reused with a different request")
	ErrUnavailable         = errorsmod.Register(Codespace, 5, "unavailable")
)

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Codespace string `json:"codespace"`
	Code      uint32 `json:"code"`
	Error     string `json:"error"`
	Category  string `json:"category"`
	RequestID string `json:"request_id,omitempty"`
}

func newRequestID() string { return "req_" + uuid.NewString() }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errorsmod.Wrap(ErrBadRequest, "empty body")
		}
		return errorsmod.Wrap(ErrBadRequest, err.Error())
	}
	return nil
}

// statusOf maps an error to its HTTP status by category.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrIdempotencyMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	switch domain.CategoryOf(err) {
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryAuthorization:
		return http.StatusForbidden
	case domain.CategoryStateConflict:
		return http.StatusConflict
	case domain.CategoryNotFound:
		return http.StatusNotFound
	case domain.CategoryConfiguration:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func categoryOf(err error) string {
	var coded *errorsmod.Error
	if errors.As(err, &coded) && coded.Codespace() == Codespace {
		return "request"
	}
	return string(domain.CategoryOf(err))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	codespace, code, _ := errorsmod.ABCIInfo(err, false)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, ErrorBody{
		Codespace: codespace,
		Code:      code,
		Error:     msg,
		Category:  categoryOf(err),
		RequestID: requestIDFrom(r.Context()),
	})
}
