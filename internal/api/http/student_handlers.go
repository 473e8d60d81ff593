package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/examhall/examhall/internal/auth/middleware"
	"github.com/examhall/examhall/internal/exam"
	"github.com/examhall/examhall/internal/proctor"
	"github.com/examhall/examhall/internal/rbac"
)

func subject(r *http.Request) string {
	return auth.SubjectFromContext(r.Context())
}

// canViewAll reports whether the caller may read attempts other than their
// own (teacher review, admin).
func canViewAll(r *http.Request) bool {
	return rbac.Has(rbac.RoleFromContext(r.Context()), "attempt:view-all")
}

// StartAttemptHandler starts a new attempt or resumes the caller's open one
// for the same exam. Calling it twice is safe; both calls land on the same
// attempt row.
func StartAttemptHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ExamID string `json:"exam_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExamID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		a, err := st.StartOrResume(r.Context(), req.ExamID, subject(r), time.Now().Unix())
		if err != nil {
			writeError(w, err)
			return
		}
		e, err := st.GetExam(r.Context(), req.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"attempt":  a,
			"exam":     e,
			"deadline": e.DeadlineFor(a.StartedAt),
		})
	}
}

// SaveAnswerHandler upserts one answer. Later saves for the same question
// replace earlier ones.
func SaveAnswerHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		questionID := chi.URLParam(r, "questionID")
		var in exam.AnswerInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		a, err := st.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		if a.StudentID != subject(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		saved, err := st.SaveAnswer(r.Context(), attemptID, questionID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// SubmitAttemptHandler closes the attempt and runs the objective grading
// pass. Replays return the stored result with already_submitted set.
func SubmitAttemptHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := st.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		if a.StudentID != subject(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := st.Submit(r.Context(), attemptID, exam.TriggerManual, time.Now().Unix())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GetAttemptHandler returns one attempt. Students see only their own;
// callers with attempt:view-all get the full detail including answers and
// the violation log.
func GetAttemptHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		a, err := st.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		if canViewAll(r) {
			d, err := st.GetAttemptDetail(r.Context(), attemptID)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, d)
			return
		}
		if a.StudentID != subject(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// LogViolationHandler records one proctoring signal against the caller's
// own attempt and reports whether it tripped the auto-submit threshold.
func LogViolationHandler(st exam.Store, tr *proctor.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attemptID := chi.URLParam(r, "attemptID")
		var req struct {
			Type   string `json:"type"`
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		a, err := st.GetAttempt(r.Context(), attemptID)
		if err != nil {
			writeError(w, err)
			return
		}
		if a.StudentID != subject(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := tr.Log(r.Context(), attemptID, req.Type, req.Detail, time.Now().Unix())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
