package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/examhall/examhall/internal/exam"
)

// CreateExamHandler stores a draft exam owned by the caller. The body is a
// full exam document; id and access key are assigned server-side when blank.
func CreateExamHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.AccessKey == "" {
			e.AccessKey = exam.NewAccessKey()
		} else {
			e.AccessKey = exam.NormalizeAccessKey(e.AccessKey)
			if e.AccessKey == "" {
				http.Error(w, "access key too short", http.StatusBadRequest)
				return
			}
		}
		e.TeacherID = subject(r)
		e.IsPublished = false
		for i := range e.Questions {
			if e.Questions[i].ID == "" {
				e.Questions[i].ID = uuid.NewString()
			}
		}
		if err := e.Validate(); err != nil {
			writeError(w, err)
			return
		}
		if err := st.PutExam(r.Context(), e); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// PublishExamHandler flips the published flag. An empty body publishes;
// {"publish": false} takes an exam back down.
func PublishExamHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		req := struct {
			Publish *bool `json:"publish"`
		}{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		publish := req.Publish == nil || *req.Publish
		if err := st.PublishExam(r.Context(), id, publish); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"is_published": publish})
	}
}

// GetExamHandler returns the student-safe view: answer keys stripped.
func GetExamHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := st.GetExam(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// GetExamAdminHandler returns the full exam including answer keys and the
// access key. Teacher-only by route guard.
func GetExamAdminHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := st.GetExamAdmin(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// LookupExamHandler resolves an access key to the exam a student may join.
func LookupExamHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AccessKey string `json:"access_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		key := exam.NormalizeAccessKey(req.AccessKey)
		if key == "" {
			http.Error(w, "access key too short", http.StatusBadRequest)
			return
		}
		e, err := st.GetExamByAccessKey(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"exam":        e,
			"window_open": e.WindowOpen(time.Now().Unix()),
		})
	}
}
