package domain

import "errors"

var (
	// ErrInvalidSubmission covers malformed or out-of-scope identifiers and bad anti-replay tokens.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAlreadyAttempted is returned when the user already has an attempt for the quiz.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrNoActiveQuiz is returned when there is nothing open for attempts.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrStorageFailure wraps any failure of the persistence layer.
	ErrStorageFailure = errors.New("storage failure")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound indicates an unknown attempt ID.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrUserExists is returned on registration with a taken employee ID or CIN.
	ErrUserExists = errors.New("user already exists")
	// ErrAdminExists is returned when creating an admin with a taken username.
	ErrAdminExists = errors.New("admin already exists")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized means the request carries no valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the session is valid but the principal kind may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidQuiz is returned for a malformed quiz definition.
	ErrInvalidQuiz = errors.New("invalid quiz definition")
)
