package exam_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/examhall/examhall/internal/db"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/grading"
)

// openSQLStore spins up a throwaway in-memory sqlite database with the
// real schema. Each test gets its own named database so shared cache
// never bleeds state across tests.
func openSQLStore(t *testing.T) *exam.SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbh, err := db.Open(ctx, db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return exam.NewSQLStore(dbh, "sqlite", grading.NewDefaultGrader())
}

func seedSQLExam(t *testing.T, st *exam.SQLStore) exam.Exam {
	t.Helper()
	ctx := context.Background()
	e := exam.Exam{
		ID:            "exam-1",
		Title:         "Final",
		TeacherID:     "teacher-1",
		AccessKey:     "FINAL234",
		DurationMin:   45,
		MaxViolations: 3,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.TypeSingleChoice, Content: "one", Points: 2,
				Options:    []exam.Option{{ID: "a"}, {ID: "b"}},
				CorrectIDs: []string{"b"}, OrderIndex: 0},
			{ID: "q2", Type: exam.TypeMultiChoice, Content: "two", Points: 3,
				Options:    []exam.Option{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
				CorrectIDs: []string{"a", "d"}, OrderIndex: 1},
			{ID: "q3", Type: exam.TypeEssay, Content: "three", Points: 5, OrderIndex: 2},
		},
	}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatalf("put exam: %v", err)
	}
	if err := st.PublishExam(ctx, e.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return e
}

func TestSQLStartOrResumeSingleOpenAttempt(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)

	a1, err := st.StartOrResume(ctx, e.ID, "stu-1", 1000)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	a2, err := st.StartOrResume(ctx, e.ID, "stu-1", 1300)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if a1.ID != a2.ID || a2.StartedAt != 1000 {
		t.Fatalf("resume must return the open attempt unchanged: %+v vs %+v", a1, a2)
	}

	// Once submitted, a fresh start creates a new attempt row.
	if _, err := st.Submit(ctx, a1.ID, exam.TriggerManual, 1500); err != nil {
		t.Fatalf("submit: %v", err)
	}
	a3, err := st.StartOrResume(ctx, e.ID, "stu-1", 2000)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if a3.ID == a1.ID {
		t.Fatal("submitted attempt must not be resumed")
	}
}

func TestSQLSaveAnswerUpsert(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)
	a, _ := st.StartOrResume(ctx, e.ID, "stu-1", 1000)

	if _, err := st.SaveAnswer(ctx, a.ID, "q1", exam.AnswerInput{SelectedIDs: []string{"a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.SaveAnswer(ctx, a.ID, "q1", exam.AnswerInput{SelectedIDs: []string{"b"}}); err != nil {
		t.Fatalf("resave: %v", err)
	}

	d, err := st.GetAttemptDetail(ctx, a.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Answers) != 1 {
		t.Fatalf("upsert made %d rows, want 1", len(d.Answers))
	}
	if got := d.Answers[0].SelectedIDs; len(got) != 1 || got[0] != "b" {
		t.Fatalf("last write lost: %v", got)
	}
}

func TestSQLSubmitLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)
	a, _ := st.StartOrResume(ctx, e.ID, "stu-1", 1000)

	saves := []struct {
		q  string
		in exam.AnswerInput
	}{
		{"q1", exam.AnswerInput{SelectedIDs: []string{"b"}}},
		{"q2", exam.AnswerInput{SelectedIDs: []string{"a", "c"}}}, // partial, earns nothing
		{"q3", exam.AnswerInput{EssayText: "long form answer"}},
	}
	for _, s := range saves {
		if _, err := st.SaveAnswer(ctx, a.ID, s.q, s.in); err != nil {
			t.Fatalf("save %s: %v", s.q, err)
		}
	}

	res, err := st.Submit(ctx, a.ID, exam.TriggerManual, 1700)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.AlreadySubmitted {
		t.Fatal("first submit flagged as replay")
	}
	if res.Score != 2 || res.MaxScore != 10 || res.Percentage != 20 {
		t.Fatalf("got %v/%v/%d, want 2/10/20", res.Score, res.MaxScore, res.Percentage)
	}
	if res.FullyGraded {
		t.Fatal("essay still pending")
	}

	// Replay with a different trigger: same stored result, nothing moves.
	replay, err := st.Submit(ctx, a.ID, exam.TriggerViolation, 9000)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.AlreadySubmitted || *replay.Attempt.SubmittedAt != 1700 || replay.Score != 2 {
		t.Fatalf("replay altered state: %+v", replay)
	}

	// Post-submit writes are refused.
	if _, err := st.SaveAnswer(ctx, a.ID, "q1", exam.AnswerInput{SelectedIDs: []string{"a"}}); !errors.Is(err, exam.ErrAttemptClosed) {
		t.Fatalf("want ErrAttemptClosed, got %v", err)
	}

	// Manual grading completes the report.
	rep, err := st.GradeEssay(ctx, a.ID, "q3", 5)
	if err != nil {
		t.Fatalf("grade essay: %v", err)
	}
	if rep.Score != 7 || rep.Percentage != 70 || !rep.FullyGraded {
		t.Fatalf("after essay grade got %v/%d fully=%v, want 7/70/true", rep.Score, rep.Percentage, rep.FullyGraded)
	}

	// Regrade replaces the award.
	rep, err = st.GradeEssay(ctx, a.ID, "q3", 1)
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}
	if rep.Score != 3 {
		t.Fatalf("regrade score %v, want 3", rep.Score)
	}
}

func TestSQLGradeEssayValidation(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)
	a, _ := st.StartOrResume(ctx, e.ID, "stu-1", 1000)
	if _, err := st.SaveAnswer(ctx, a.ID, "q1", exam.AnswerInput{SelectedIDs: []string{"b"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := st.SaveAnswer(ctx, a.ID, "q3", exam.AnswerInput{EssayText: "x"}); err != nil {
		t.Fatalf("save essay: %v", err)
	}

	if _, err := st.GradeEssay(ctx, a.ID, "q3", 3); !errors.Is(err, exam.ErrNotAuthorized) {
		t.Fatalf("open attempt: want ErrNotAuthorized, got %v", err)
	}
	if _, err := st.Submit(ctx, a.ID, exam.TriggerManual, 1500); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := st.GradeEssay(ctx, a.ID, "q3", 5.5); !errors.Is(err, exam.ErrInvalidScore) {
		t.Fatalf("over max: want ErrInvalidScore, got %v", err)
	}
	if _, err := st.GradeEssay(ctx, a.ID, "q1", 1); !errors.Is(err, exam.ErrInvalidScore) {
		t.Fatalf("choice question: want ErrInvalidScore, got %v", err)
	}
	if _, err := st.GradeEssay(ctx, a.ID, "q2", 1); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("unanswered question: want ErrNotFound, got %v", err)
	}
}

func TestSQLViolationsAndSweep(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st) // 45 minutes
	a, _ := st.StartOrResume(ctx, e.ID, "stu-1", 1000)

	for i := 0; i < 2; i++ {
		if _, err := st.AppendViolation(ctx, a.ID, exam.ViolationTabSwitch, "", int64(1100+i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	n, err := st.CountViolations(ctx, a.ID)
	if err != nil || n != 2 {
		t.Fatalf("count=%d err=%v, want 2", n, err)
	}

	closed, err := st.SweepOverdue(ctx, 1000+45*60)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if closed != 1 {
		t.Fatalf("closed %d, want 1", closed)
	}
	got, err := st.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.InProgress() || *got.SubmittedAt != 1000+45*60 {
		t.Fatalf("sweep submit time wrong: %+v", got)
	}

	// Late signal after the sweep is dropped silently.
	if n, err := st.AppendViolation(ctx, a.ID, exam.ViolationWindowBlur, "", 5000); err != nil || n != 2 {
		t.Fatalf("post-submit append: n=%d err=%v", n, err)
	}
}

func TestSQLAccessKeyLookup(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)

	got, err := st.GetExamByAccessKey(ctx, "FINAL234")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ID != e.ID {
		t.Fatalf("lookup resolved %s, want %s", got.ID, e.ID)
	}
	for _, q := range got.Questions {
		if len(q.CorrectIDs) != 0 {
			t.Fatalf("lookup leaked answer key on %s", q.ID)
		}
	}

	if _, err := st.GetExamByAccessKey(ctx, "NOPE2345"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	// Unpublished exams are invisible to key lookup.
	if err := st.PublishExam(ctx, e.ID, false); err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if _, err := st.GetExamByAccessKey(ctx, "FINAL234"); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("unpublished lookup: want ErrNotFound, got %v", err)
	}
}

func TestSQLFlagAndCancel(t *testing.T) {
	ctx := context.Background()
	st := openSQLStore(t)
	e := seedSQLExam(t, st)
	a, _ := st.StartOrResume(ctx, e.ID, "stu-1", 1000)

	got, err := st.FlagAttempt(ctx, a.ID, true, "excessive tab switching")
	if err != nil {
		t.Fatalf("flag: %v", err)
	}
	if !got.IsFlagged || got.FlagReason != "excessive tab switching" {
		t.Fatalf("flag not recorded: %+v", got)
	}
	got, err = st.FlagAttempt(ctx, a.ID, false, "ignored")
	if err != nil {
		t.Fatalf("unflag: %v", err)
	}
	if got.IsFlagged || got.FlagReason != "" {
		t.Fatalf("unflag must clear the reason: %+v", got)
	}

	got, err = st.CancelAttempt(ctx, a.ID, "confirmed cheating")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !got.IsCancelled || got.CancelReason != "confirmed cheating" {
		t.Fatalf("cancel not recorded: %+v", got)
	}

	if _, err := st.FlagAttempt(ctx, "missing", true, ""); !errors.Is(err, exam.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
