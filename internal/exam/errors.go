package exam

import "errors"

// Error taxonomy shared by every store implementation. Handlers map these
// to HTTP statuses; everything else is treated as an internal error.
var (
	// ErrNotFound: exam, attempt, question or answer id does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthorized: exam not published, outside its start/end window,
	// or the caller does not own the resource.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAttemptClosed: a mutation was attempted on a submitted attempt.
	ErrAttemptClosed = errors.New("attempt already submitted")

	// ErrInvalidScore: manual grade outside [0, question.points].
	ErrInvalidScore = errors.New("score out of range")

	// ErrInvalidExam: exam definition fails validation (e.g. a choice
	// question whose correct set is empty or not a subset of its options).
	ErrInvalidExam = errors.New("invalid exam definition")
)
