package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	auth "github.com/examhall/examhall/internal/auth/middleware"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/grading"
	"github.com/examhall/examhall/internal/proctor"
	"github.com/examhall/examhall/internal/rbac"
)

// asUser stamps the subject and role the JWT middleware would have set.
func asUser(sub, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithSubject(r.Context(), sub)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(st exam.Store, sub, role string) chi.Router {
	tr := proctor.NewTracker(st)
	r := chi.NewRouter()
	r.Use(asUser(sub, role))
	r.Post("/exams/lookup", LookupExamHandler(st))
	r.Get("/exams/{examID}", GetExamHandler(st))
	r.Post("/attempts", StartAttemptHandler(st))
	r.Put("/attempts/{attemptID}/answers/{questionID}", SaveAnswerHandler(st))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(st))
	r.Post("/attempts/{attemptID}/violations", LogViolationHandler(st, tr))
	r.Get("/attempts/{attemptID}", GetAttemptHandler(st))
	r.Get("/attempts", ListAttemptsHandler(st))
	r.Post("/attempts/{attemptID}/grade/{questionID}", GradeEssayHandler(st))
	return r
}

func seedStore(t *testing.T) exam.Store {
	t.Helper()
	ctx := context.Background()
	st := exam.NewInMemoryStore(grading.NewDefaultGrader())
	e := exam.Exam{
		ID:                    "exam-1",
		Title:                 "HTTP quiz",
		TeacherID:             "teacher-1",
		AccessKey:             "HTTP2345",
		DurationMin:           30,
		MaxViolations:         2,
		AutoSubmitOnViolation: true,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.TypeSingleChoice, Content: "pick", Points: 2,
				Options:    []exam.Option{{ID: "a"}, {ID: "b"}},
				CorrectIDs: []string{"b"}},
			{ID: "q2", Type: exam.TypeEssay, Content: "write", Points: 3},
		},
	}
	if err := st.PutExam(ctx, e); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := st.PublishExam(ctx, e.ID, true); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return st
}

func do(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStudentFlowOverHTTP(t *testing.T) {
	st := seedStore(t)
	r := newTestRouter(st, "stu-1", "student")

	// Lookup by access key, lowercase input normalized.
	rec := do(t, r, "POST", "/exams/lookup", map[string]string{"access_key": "http2345"})
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, r, "POST", "/attempts", map[string]string{"exam_id": "exam-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	var started struct {
		Attempt exam.Attempt `json:"attempt"`
		Exam    exam.Exam    `json:"exam"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, q := range started.Exam.Questions {
		if len(q.CorrectIDs) != 0 {
			t.Fatalf("start response leaked answer key on %s", q.ID)
		}
	}
	attemptID := started.Attempt.ID

	rec = do(t, r, "PUT", "/attempts/"+attemptID+"/answers/q1",
		exam.AnswerInput{SelectedIDs: []string{"b"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: %d %s", rec.Code, rec.Body)
	}

	rec = do(t, r, "POST", "/attempts/"+attemptID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body)
	}
	var res exam.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode submit: %v", err)
	}
	if res.Score != 2 || res.MaxScore != 5 || res.Percentage != 40 {
		t.Fatalf("submit result %+v", res.Report)
	}

	// Writing after submission maps to 409.
	rec = do(t, r, "PUT", "/attempts/"+attemptID+"/answers/q1",
		exam.AnswerInput{SelectedIDs: []string{"a"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("post-submit save: %d, want 409", rec.Code)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	st := seedStore(t)
	owner := newTestRouter(st, "stu-1", "student")
	intruder := newTestRouter(st, "stu-2", "student")
	teacher := newTestRouter(st, "teacher-1", "teacher")

	rec := do(t, owner, "POST", "/attempts", map[string]string{"exam_id": "exam-1"})
	var started struct {
		Attempt exam.Attempt `json:"attempt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := started.Attempt.ID

	if rec := do(t, intruder, "PUT", "/attempts/"+id+"/answers/q1",
		exam.AnswerInput{SelectedIDs: []string{"b"}}); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign save: %d, want 403", rec.Code)
	}
	if rec := do(t, intruder, "POST", "/attempts/"+id+"/submit", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign submit: %d, want 403", rec.Code)
	}
	if rec := do(t, intruder, "GET", "/attempts/"+id, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign read: %d, want 403", rec.Code)
	}

	// Teachers see the full detail instead.
	rec = do(t, teacher, "GET", "/attempts/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("teacher read: %d %s", rec.Code, rec.Body)
	}
	var detail exam.AttemptDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.Attempt.ID != id {
		t.Fatalf("teacher got %s, want %s", detail.Attempt.ID, id)
	}
}

func TestViolationEndpointAutoSubmits(t *testing.T) {
	st := seedStore(t)
	r := newTestRouter(st, "stu-1", "student")

	rec := do(t, r, "POST", "/attempts", map[string]string{"exam_id": "exam-1"})
	var started struct {
		Attempt exam.Attempt `json:"attempt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := started.Attempt.ID

	body := map[string]string{"type": exam.ViolationTabSwitch}
	rec = do(t, r, "POST", "/attempts/"+id+"/violations", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("first signal: %d %s", rec.Code, rec.Body)
	}
	var lr proctor.LogResult
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lr.Count != 1 || lr.AutoSubmitted {
		t.Fatalf("first signal: %+v", lr)
	}

	// max_violations is 2: the second signal trips the policy.
	rec = do(t, r, "POST", "/attempts/"+id+"/violations", body)
	if err := json.Unmarshal(rec.Body.Bytes(), &lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lr.Count != 2 || !lr.AutoSubmitted {
		t.Fatalf("second signal: %+v", lr)
	}

	got, err := st.GetAttempt(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.InProgress() {
		t.Fatal("attempt still open after threshold")
	}
}

func TestErrorMapping(t *testing.T) {
	st := seedStore(t)
	student := newTestRouter(st, "stu-1", "student")
	teacher := newTestRouter(st, "teacher-1", "teacher")

	if rec := do(t, student, "GET", "/exams/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing exam: %d, want 404", rec.Code)
	}
	if rec := do(t, student, "POST", "/exams/lookup",
		map[string]string{"access_key": "abc"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("short key: %d, want 400", rec.Code)
	}

	rec := do(t, student, "POST", "/attempts", map[string]string{"exam_id": "exam-1"})
	var started struct {
		Attempt exam.Attempt `json:"attempt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := started.Attempt.ID
	if rec := do(t, student, "PUT", "/attempts/"+id+"/answers/q2",
		exam.AnswerInput{EssayText: "draft"}); rec.Code != http.StatusOK {
		t.Fatalf("save essay: %d", rec.Code)
	}
	if rec := do(t, student, "POST", "/attempts/"+id+"/submit", nil); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d", rec.Code)
	}

	// Out-of-range essay award maps to 400.
	if rec := do(t, teacher, "POST", "/attempts/"+id+"/grade/q2",
		map[string]float64{"points": 99}); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad award: %d, want 400", rec.Code)
	}
}
