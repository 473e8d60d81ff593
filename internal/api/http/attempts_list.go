package http

import (
	"net/http"

	"github.com/examhall/examhall/internal/exam"
)

// ListAttemptsHandler lists attempts with derived violation counts.
// Filters come from the query string: exam_id, student_id, status
// (in_progress|submitted), limit, offset. Callers without the
// attempt:view-all permission are pinned to their own attempts no matter
// what student_id says.
func ListAttemptsHandler(st exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.AttemptListOpts{
			ExamID:    q.Get("exam_id"),
			StudentID: q.Get("student_id"),
			Status:    q.Get("status"),
			Limit:     parseIntDefault(q.Get("limit"), 50),
			Offset:    parseIntDefault(q.Get("offset"), 0),
		}
		if !canViewAll(r) {
			opts.StudentID = subject(r)
		}
		rows, err := st.ListAttempts(r.Context(), opts)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"attempts": rows, "count": len(rows)})
	}
}
