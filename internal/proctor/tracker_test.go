package proctor

import (
	"context"
	"testing"

	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/grading"
)

func seed(t *testing.T, autoSubmit bool, maxViolations int) (exam.Store, exam.Attempt) {
	t.Helper()
	ctx := context.Background()
	st := exam.NewInMemoryStore(grading.NewDefaultGrader())
	e := exam.Exam{
		ID:                    "exam-1",
		Title:                 "Proctored quiz",
		TeacherID:             "teacher-1",
		AccessKey:             "QUIZ2345",
		DurationMin:           30,
		MaxViolations:         maxViolations,
		AutoSubmitOnViolation: autoSubmit,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.TypeSingleChoice, Content: "q", Points: 1,
				Options:    []exam.Option{{ID: "a"}, {ID: "b"}},
				CorrectIDs: []string{"a"}},
		},
	}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	if err := st.PublishExam(ctx, e.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	a, err := st.StartOrResume(ctx, e.ID, "stu-1", 1000)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return st, a
}

func TestThresholdForcesSubmitOnce(t *testing.T) {
	ctx := context.Background()
	st, a := seed(t, true, 3)
	tr := NewTracker(st)

	for i, want := range []struct {
		count     int
		submitted bool
	}{
		{1, false},
		{2, false},
		{3, true}, // count reaches max_violations
	} {
		res, err := tr.Log(ctx, a.ID, exam.ViolationTabSwitch, "", int64(1100+i))
		if err != nil {
			t.Fatalf("log %d: %v", i+1, err)
		}
		if res.Count != want.count || res.AutoSubmitted != want.submitted {
			t.Fatalf("signal %d: got count=%d submitted=%v, want count=%d submitted=%v",
				i+1, res.Count, res.AutoSubmitted, want.count, want.submitted)
		}
	}

	got, _ := st.GetAttempt(ctx, a.ID)
	if got.InProgress() {
		t.Fatal("attempt still open after threshold")
	}

	// A stale signal after the forced submit is dropped, not an error, and
	// never re-submits.
	res, err := tr.Log(ctx, a.ID, exam.ViolationWindowBlur, "", 1200)
	if err != nil {
		t.Fatalf("late signal: %v", err)
	}
	if res.AutoSubmitted {
		t.Fatal("late signal must not report a second auto-submit")
	}
	if res.Count != 3 {
		t.Fatalf("late signal count = %d, want 3", res.Count)
	}
}

func TestCountMatchesLogRows(t *testing.T) {
	ctx := context.Background()
	st, a := seed(t, true, 10)
	tr := NewTracker(st)

	types := []string{
		exam.ViolationTabSwitch,
		exam.ViolationWindowBlur,
		exam.ViolationCameraOff,
		exam.ViolationMinimize,
	}
	for i, vt := range types {
		if _, err := tr.Log(ctx, a.ID, vt, "detail", int64(1100+i)); err != nil {
			t.Fatalf("log %s: %v", vt, err)
		}
	}
	logs, err := st.ListViolations(ctx, a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != len(types) {
		t.Fatalf("log rows = %d, want %d", len(logs), len(types))
	}
	n, _ := st.CountViolations(ctx, a.ID)
	if n != len(types) {
		t.Fatalf("derived count = %d, want %d", n, len(types))
	}
}

func TestNoAutoSubmitWhenPolicyDisabled(t *testing.T) {
	ctx := context.Background()
	st, a := seed(t, false, 2)
	tr := NewTracker(st)

	for i := 0; i < 5; i++ {
		res, err := tr.Log(ctx, a.ID, exam.ViolationTabSwitch, "", int64(1100+i))
		if err != nil {
			t.Fatalf("log: %v", err)
		}
		if res.AutoSubmitted {
			t.Fatal("auto-submit fired with the policy disabled")
		}
	}
	got, _ := st.GetAttempt(ctx, a.ID)
	if !got.InProgress() {
		t.Fatal("attempt closed despite disabled policy")
	}
}

func TestUnknownViolationTypeRejected(t *testing.T) {
	ctx := context.Background()
	st, a := seed(t, true, 3)
	tr := NewTracker(st)
	if _, err := tr.Log(ctx, a.ID, "telepathy", "", 1100); err == nil {
		t.Fatal("expected error for unknown violation type")
	}
	if n, _ := st.CountViolations(ctx, a.ID); n != 0 {
		t.Fatalf("rejected signal was logged, count = %d", n)
	}
}
