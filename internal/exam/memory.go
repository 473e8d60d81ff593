package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/examhall/examhall/internal/grading"
)

// memoryStore keeps everything behind one mutex. Used by tests and as the
// zero-dependency offline mode; semantics match the SQL store.
type memoryStore struct {
	mu         sync.RWMutex
	grader     grading.Grader
	exams      map[string]Exam
	attempts   map[string]Attempt
	answers    map[string]map[string]Answer // attemptID -> questionID
	violations map[string][]ViolationLogEntry
	violSeq    int64
}

func NewInMemoryStore(g grading.Grader) Store {
	return &memoryStore{
		grader:     g,
		exams:      map[string]Exam{},
		attempts:   map[string]Attempt{},
		answers:    map[string]map[string]Answer{},
		violations: map[string][]ViolationLogEntry{},
	}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	if err := e.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AccessKey == "" {
		e.AccessKey = NewAccessKey()
	}
	for i := range e.Questions {
		if e.Questions[i].ID == "" {
			e.Questions[i].ID = uuid.NewString()
		}
		e.Questions[i].ExamID = e.ID
	}
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) PublishExam(_ context.Context, examID string, publish bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	e.IsPublished = publish
	m.exams[examID] = e
	return nil
}

func (m *memoryStore) GetExam(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return stripKeys(e), nil
}

func (m *memoryStore) GetExamAdmin(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
	}
	return cloneExam(e), nil
}

func (m *memoryStore) GetExamByAccessKey(_ context.Context, key string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.exams {
		if e.AccessKey == key && e.IsPublished {
			return stripKeys(e), nil
		}
	}
	return Exam{}, fmt.Errorf("access key %s: %w", key, ErrNotFound)
}

func (m *memoryStore) StartOrResume(_ context.Context, examID, studentID string, now int64) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exams[examID]
	if !ok {
		return Attempt{}, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	if !e.IsPublished {
		return Attempt{}, fmt.Errorf("exam %s not published: %w", examID, ErrNotAuthorized)
	}
	if !e.WindowOpen(now) {
		return Attempt{}, fmt.Errorf("exam %s outside its window: %w", examID, ErrNotAuthorized)
	}
	// Idempotent resume: a reload or retry must rejoin the open attempt.
	for _, a := range m.attempts {
		if a.ExamID == examID && a.StudentID == studentID && a.InProgress() {
			return a, nil
		}
	}
	a := Attempt{ID: uuid.NewString(), ExamID: examID, StudentID: studentID, StartedAt: now}
	m.attempts[a.ID] = a
	m.answers[a.ID] = map[string]Answer{}
	return a, nil
}

func (m *memoryStore) SaveAnswer(_ context.Context, attemptID, questionID string, in AnswerInput) (Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Answer{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if !a.InProgress() {
		return Answer{}, fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptClosed)
	}
	if !m.questionExists(a.ExamID, questionID) {
		return Answer{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	// Last write per question wins; no grading happens here.
	ans := Answer{
		AttemptID:   attemptID,
		QuestionID:  questionID,
		SelectedIDs: append([]string(nil), in.SelectedIDs...),
		EssayText:   in.EssayText,
	}
	m.answers[attemptID][questionID] = ans
	return ans, nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID, trigger string, now int64) (SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitLocked(ctx, attemptID, trigger, now)
}

func (m *memoryStore) submitLocked(ctx context.Context, attemptID, trigger string, now int64) (SubmitResult, error) {
	a, ok := m.attempts[attemptID]
	if !ok {
		return SubmitResult{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	e := m.exams[a.ExamID]
	if !a.InProgress() {
		rep := buildReport(e, a, m.answerSlice(attemptID))
		return SubmitResult{Report: rep, AlreadySubmitted: true}, nil
	}

	answers, err := runObjectivePass(ctx, m.grader, e.Questions, m.answerSlice(attemptID))
	if err != nil {
		return SubmitResult{}, err
	}
	for _, ans := range answers {
		m.answers[attemptID][ans.QuestionID] = ans
	}

	submittedAt := clampSubmitTime(e, a.StartedAt, now)
	a.SubmittedAt = &submittedAt
	rep := buildReport(e, a, answers)
	score := rep.Score
	a.Score = &score
	m.attempts[attemptID] = a
	rep.Attempt = a
	_ = trigger // triggers only matter for audit; memory store keeps none
	return SubmitResult{Report: rep}, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *memoryStore) GetAttemptDetail(_ context.Context, id string) (AttemptDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return AttemptDetail{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	e := m.exams[a.ExamID]
	answers := m.answerSlice(id)
	return AttemptDetail{
		Report:     buildReport(e, a, answers),
		Answers:    answers,
		Violations: append([]ViolationLogEntry(nil), m.violations[id]...),
	}, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]AttemptSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []AttemptSummary{}
	for _, a := range m.attempts {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.StudentID != "" && a.StudentID != opts.StudentID {
			continue
		}
		if opts.Status == "in_progress" && !a.InProgress() {
			continue
		}
		if opts.Status == "submitted" && a.InProgress() {
			continue
		}
		out = append(out, AttemptSummary{Attempt: a, ViolationCount: len(m.violations[a.ID])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return []AttemptSummary{}, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryStore) AppendViolation(_ context.Context, attemptID, vtype, detail string, now int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return 0, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if !a.InProgress() {
		// Signals racing a submission are expected; drop, don't fail.
		return len(m.violations[attemptID]), nil
	}
	m.violSeq++
	m.violations[attemptID] = append(m.violations[attemptID], ViolationLogEntry{
		ID:        m.violSeq,
		AttemptID: attemptID,
		Type:      vtype,
		Detail:    detail,
		CreatedAt: now,
	})
	return len(m.violations[attemptID]), nil
}

func (m *memoryStore) CountViolations(_ context.Context, attemptID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return 0, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return len(m.violations[attemptID]), nil
}

func (m *memoryStore) ListViolations(_ context.Context, attemptID string) ([]ViolationLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return nil, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return append([]ViolationLogEntry(nil), m.violations[attemptID]...), nil
}

func (m *memoryStore) GradeEssay(_ context.Context, attemptID, questionID string, points float64) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Report{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	if a.InProgress() {
		return Report{}, fmt.Errorf("attempt %s still in progress: %w", attemptID, ErrNotAuthorized)
	}
	ans, ok := m.answers[attemptID][questionID]
	if !ok {
		return Report{}, fmt.Errorf("answer %s/%s: %w", attemptID, questionID, ErrNotFound)
	}
	e := m.exams[a.ExamID]
	q, ok := findQuestion(e, questionID)
	if !ok {
		return Report{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if q.Type != TypeEssay {
		return Report{}, fmt.Errorf("%w: question %s is not manually gradable", ErrInvalidScore, questionID)
	}
	if points < 0 || points > q.Points {
		return Report{}, fmt.Errorf("%w: %.2f not in [0, %.2f]", ErrInvalidScore, points, q.Points)
	}
	ans.PointsAwarded = &points
	ans.IsGraded = true
	m.answers[attemptID][questionID] = ans

	rep := buildReport(e, a, m.answerSlice(attemptID))
	score := rep.Score
	a.Score = &score
	m.attempts[attemptID] = a
	rep.Attempt = a
	return rep, nil
}

func (m *memoryStore) FlagAttempt(_ context.Context, attemptID string, flagged bool, reason string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	a.IsFlagged = flagged
	a.FlagReason = reason
	if !flagged {
		a.FlagReason = ""
	}
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) CancelAttempt(_ context.Context, attemptID, reason string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	a.IsCancelled = true
	a.CancelReason = reason
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) SweepOverdue(ctx context.Context, now int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	closed := 0
	for id, a := range m.attempts {
		if !a.InProgress() {
			continue
		}
		e := m.exams[a.ExamID]
		if e.DeadlineFor(a.StartedAt) <= now {
			if _, err := m.submitLocked(ctx, id, TriggerTimeout, now); err != nil {
				return closed, err
			}
			closed++
		}
	}
	return closed, nil
}

// helpers

func (m *memoryStore) answerSlice(attemptID string) []Answer {
	rows := m.answers[attemptID]
	out := make([]Answer, 0, len(rows))
	for _, a := range rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}

func (m *memoryStore) questionExists(examID, questionID string) bool {
	e, ok := m.exams[examID]
	if !ok {
		return false
	}
	_, ok = findQuestion(e, questionID)
	return ok
}

func findQuestion(e Exam, questionID string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

func stripKeys(e Exam) Exam {
	e = cloneExam(e)
	for i := range e.Questions {
		e.Questions[i].CorrectIDs = nil
	}
	return e
}

func cloneExam(e Exam) Exam {
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		qs[i].Options = append([]Option(nil), qs[i].Options...)
		qs[i].CorrectIDs = append([]string(nil), qs[i].CorrectIDs...)
	}
	e.Questions = qs
	return e
}
