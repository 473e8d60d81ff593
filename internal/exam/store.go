package exam

import "context"

type AttemptListOpts struct {
	ExamID    string // filter by exam
	StudentID string // filter by student
	Status    string // optional: in_progress|submitted
	Limit     int
	Offset    int
}

// Store is the persistence boundary for the attempt lifecycle. Both the
// SQL store and the in-memory store implement it with the same semantics:
//
//   - StartOrResume is atomic: two concurrent calls for the same
//     (exam, student) never create two open attempts.
//   - Submit is single-writer-wins: the first caller grades and scores,
//     later callers get the stored result with AlreadySubmitted set.
//   - AppendViolation is a silent no-op on a submitted attempt.
type Store interface {
	PutExam(ctx context.Context, e Exam) error
	PublishExam(ctx context.Context, examID string, publish bool) error
	GetExam(ctx context.Context, id string) (Exam, error)      // student-safe: correct sets stripped
	GetExamAdmin(ctx context.Context, id string) (Exam, error) // full exam, for grading/teachers
	GetExamByAccessKey(ctx context.Context, key string) (Exam, error)

	StartOrResume(ctx context.Context, examID, studentID string, now int64) (Attempt, error)
	SaveAnswer(ctx context.Context, attemptID, questionID string, in AnswerInput) (Answer, error)
	Submit(ctx context.Context, attemptID, trigger string, now int64) (SubmitResult, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	GetAttemptDetail(ctx context.Context, id string) (AttemptDetail, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptSummary, error)

	// AppendViolation durably appends a log entry and returns the derived
	// count of entries for the attempt. On a submitted attempt nothing is
	// appended and the current count is returned.
	AppendViolation(ctx context.Context, attemptID, vtype, detail string, now int64) (int, error)
	CountViolations(ctx context.Context, attemptID string) (int, error)
	ListViolations(ctx context.Context, attemptID string) ([]ViolationLogEntry, error)

	// GradeEssay sets the manual award for one essay answer and recomputes
	// the attempt aggregate from scratch, inside one serialized unit.
	GradeEssay(ctx context.Context, attemptID, questionID string, points float64) (Report, error)

	FlagAttempt(ctx context.Context, attemptID string, flagged bool, reason string) (Attempt, error)
	CancelAttempt(ctx context.Context, attemptID, reason string) (Attempt, error)

	// SweepOverdue submits every attempt whose deadline has passed with the
	// timeout trigger and reports how many it closed.
	SweepOverdue(ctx context.Context, now int64) (int, error)
}
