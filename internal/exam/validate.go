package exam

import "fmt"

// Validate checks an exam definition before it is stored. Choice questions
// must have a non-empty correct set that is a subset of their options.
func (e Exam) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title required", ErrInvalidExam)
	}
	if e.DurationMin <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidExam)
	}
	if e.MaxViolations < 1 {
		return fmt.Errorf("%w: max_violations must be >= 1", ErrInvalidExam)
	}
	if e.StartAt != nil && e.EndAt != nil && *e.EndAt <= *e.StartAt {
		return fmt.Errorf("%w: end_at before start_at", ErrInvalidExam)
	}
	for _, q := range e.Questions {
		if err := q.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q Question) validate() error {
	if q.Points < 0 {
		return fmt.Errorf("%w: question %s has negative points", ErrInvalidExam, q.ID)
	}
	switch q.Type {
	case TypeSingleChoice, TypeMultiChoice:
		if len(q.CorrectIDs) == 0 {
			return fmt.Errorf("%w: question %s has no correct answer", ErrInvalidExam, q.ID)
		}
		if q.Type == TypeSingleChoice && len(q.CorrectIDs) != 1 {
			return fmt.Errorf("%w: question %s must have exactly one correct answer", ErrInvalidExam, q.ID)
		}
		opts := make(map[string]struct{}, len(q.Options))
		for _, o := range q.Options {
			opts[o.ID] = struct{}{}
		}
		for _, c := range q.CorrectIDs {
			if _, ok := opts[c]; !ok {
				return fmt.Errorf("%w: question %s correct id %q is not an option", ErrInvalidExam, q.ID, c)
			}
		}
	case TypeEssay:
		if len(q.CorrectIDs) > 0 {
			return fmt.Errorf("%w: essay question %s cannot carry an answer key", ErrInvalidExam, q.ID)
		}
	default:
		return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidExam, q.ID, q.Type)
	}
	return nil
}

// WindowOpen reports whether now falls inside the exam's optional
// start/end window.
func (e Exam) WindowOpen(now int64) bool {
	if e.StartAt != nil && now < *e.StartAt {
		return false
	}
	if e.EndAt != nil && now > *e.EndAt {
		return false
	}
	return true
}
