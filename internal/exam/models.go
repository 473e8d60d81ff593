package exam

// Question types.
const (
	TypeSingleChoice = "single_choice"
	TypeMultiChoice  = "multi_choice"
	TypeEssay        = "essay"
)

// Submit triggers.
const (
	TriggerManual    = "manual"
	TriggerTimeout   = "timeout"
	TriggerViolation = "violation_threshold"
)

// Violation types, mirroring the proctoring signals the client emits.
const (
	ViolationTabSwitch    = "tab_switch"
	ViolationWindowBlur   = "window_blur"
	ViolationCameraOff    = "camera_off"
	ViolationCameraDenied = "camera_denied"
	ViolationMinimize     = "browser_minimize"
)

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID         string   `json:"id"`
	ExamID     string   `json:"exam_id,omitempty"`
	Type       string   `json:"type"` // single_choice, multi_choice, essay
	Content    string   `json:"content"`
	Options    []Option `json:"options,omitempty"`
	CorrectIDs []string `json:"correct_ids,omitempty"` // stripped on student-safe reads
	Points     float64  `json:"points"`
	OrderIndex int      `json:"order_index"`
}

type Exam struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description,omitempty"`
	TeacherID             string     `json:"teacher_id"`
	AccessKey             string     `json:"access_key,omitempty"`
	DurationMin           int        `json:"duration_min"`
	MaxViolations         int        `json:"max_violations"`
	RequireCamera         bool       `json:"require_camera"`
	AutoSubmitOnViolation bool       `json:"auto_submit_on_violation"`
	IsPublished           bool       `json:"is_published"`
	StartAt               *int64     `json:"start_at,omitempty"` // unix seconds; optional window
	EndAt                 *int64     `json:"end_at,omitempty"`
	CreatedAt             int64      `json:"created_at,omitempty"`
	Questions             []Question `json:"questions,omitempty"`
}

// DeadlineFor returns the unix second past which an attempt started at
// startedAt may no longer run. The server treats this as authoritative;
// client countdowns are a convenience only.
func (e Exam) DeadlineFor(startedAt int64) int64 {
	return startedAt + int64(e.DurationMin)*60
}

// MaxScore is the sum of all question point values, independent of
// grading status.
func (e Exam) MaxScore() float64 {
	total := 0.0
	for _, q := range e.Questions {
		total += q.Points
	}
	return total
}

type Attempt struct {
	ID           string   `json:"id"`
	ExamID       string   `json:"exam_id"`
	StudentID    string   `json:"student_id"`
	StartedAt    int64    `json:"started_at"`
	SubmittedAt  *int64   `json:"submitted_at,omitempty"` // nil while in progress
	Score        *float64 `json:"score,omitempty"`
	IsFlagged    bool     `json:"is_flagged"`
	FlagReason   string   `json:"flag_reason,omitempty"`
	IsCancelled  bool     `json:"is_cancelled"`
	CancelReason string   `json:"cancel_reason,omitempty"`
}

func (a Attempt) InProgress() bool { return a.SubmittedAt == nil }

type Answer struct {
	AttemptID     string   `json:"attempt_id"`
	QuestionID    string   `json:"question_id"`
	SelectedIDs   []string `json:"selected_ids,omitempty"`
	EssayText     string   `json:"essay_text,omitempty"`
	PointsAwarded *float64 `json:"points_awarded,omitempty"`
	IsGraded      bool     `json:"is_graded"`
}

// AnswerInput is what the student sends while the clock runs. Exactly one
// of SelectedIDs / EssayText is meaningful depending on the question type.
type AnswerInput struct {
	SelectedIDs []string `json:"selected_ids,omitempty"`
	EssayText   string   `json:"essay_text,omitempty"`
}

// ViolationLogEntry is append-only; the violation count for an attempt is
// always derived by counting these rows, never kept as a separate tally.
type ViolationLogEntry struct {
	ID        int64  `json:"id"`
	AttemptID string `json:"attempt_id"`
	Type      string `json:"type"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Report is the scored view of an attempt returned by Submit and by the
// manual-grading path. Score reflects graded answers only; FullyGraded
// tells callers whether essays are still outstanding.
type Report struct {
	Attempt     Attempt `json:"attempt"`
	Score       float64 `json:"score"`
	MaxScore    float64 `json:"max_score"`
	Percentage  int     `json:"percentage"`
	FullyGraded bool    `json:"fully_graded"`
}

// SubmitResult carries the report plus whether this call found the attempt
// already submitted (idempotent replay, not an error).
type SubmitResult struct {
	Report
	AlreadySubmitted bool `json:"already_submitted"`
}

// AttemptDetail is the teacher review view: the attempt with its answers
// and full violation log.
type AttemptDetail struct {
	Report
	Answers    []Answer            `json:"answers"`
	Violations []ViolationLogEntry `json:"violations"`
}

// AttemptSummary is a list row for dashboards.
type AttemptSummary struct {
	Attempt
	ViolationCount int `json:"violation_count"`
}
