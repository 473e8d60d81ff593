package exam

import (
	"errors"
	"testing"
)

func validExam() Exam {
	return Exam{
		Title:         "Quiz",
		DurationMin:   30,
		MaxViolations: 3,
		Questions: []Question{
			{ID: "q1", Type: TypeSingleChoice, Points: 1,
				Options:    []Option{{ID: "a"}, {ID: "b"}},
				CorrectIDs: []string{"a"}},
		},
	}
}

func TestExamValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Exam)
		ok     bool
	}{
		{"valid", func(*Exam) {}, true},
		{"missing title", func(e *Exam) { e.Title = "" }, false},
		{"zero duration", func(e *Exam) { e.DurationMin = 0 }, false},
		{"zero max violations", func(e *Exam) { e.MaxViolations = 0 }, false},
		{"window inverted", func(e *Exam) {
			s, en := int64(2000), int64(1000)
			e.StartAt, e.EndAt = &s, &en
		}, false},
		{"choice without key", func(e *Exam) { e.Questions[0].CorrectIDs = nil }, false},
		{"single choice with two keys", func(e *Exam) {
			e.Questions[0].CorrectIDs = []string{"a", "b"}
		}, false},
		{"key not an option", func(e *Exam) { e.Questions[0].CorrectIDs = []string{"z"} }, false},
		{"negative points", func(e *Exam) { e.Questions[0].Points = -1 }, false},
		{"unknown type", func(e *Exam) { e.Questions[0].Type = "matching" }, false},
		{"essay with key", func(e *Exam) {
			e.Questions = append(e.Questions, Question{
				ID: "q2", Type: TypeEssay, Points: 5, CorrectIDs: []string{"a"}})
		}, false},
		{"essay without key", func(e *Exam) {
			e.Questions = append(e.Questions, Question{ID: "q2", Type: TypeEssay, Points: 5})
		}, true},
		{"zero-point question allowed", func(e *Exam) { e.Questions[0].Points = 0 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExam()
			tc.mutate(&e)
			err := e.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, ErrInvalidExam) {
					t.Fatalf("error %v is not ErrInvalidExam", err)
				}
			}
		})
	}
}

func TestDeadlineAndMaxScore(t *testing.T) {
	e := Exam{DurationMin: 45, Questions: []Question{
		{Points: 2}, {Points: 3}, {Points: 5},
	}}
	if got := e.DeadlineFor(1000); got != 1000+45*60 {
		t.Fatalf("deadline = %d", got)
	}
	if got := e.MaxScore(); got != 10 {
		t.Fatalf("max score = %v", got)
	}
}
