package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain failures to HTTP status codes.
func statusFor(err error) int {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, domain.ErrInvalidSubmission),
		errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoActiveQuiz),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserExists),
		errors.Is(err, domain.ErrAdminExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		msg = domain.ErrStorageFailure.Error()
	case status >= http.StatusInternalServerError:
		msg = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// maxBodyBytes caps request payloads; quiz definitions are the largest.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &app.ValidationError{Err: err}
	}
	return nil
}
