package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/examhall/examhall/internal/grading"
)

// SQLStore implements Store over database/sql with the atomicity the
// lifecycle needs: start-or-resume collapses onto the partial unique
// index, submission is a claim-update followed by grading in the same
// transaction, and essay regrades serialize per attempt.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	grader grading.Grader
}

func NewSQLStore(db *sql.DB, driver string, g grading.Grader) *SQLStore {
	return &SQLStore{db: db, driver: driver, grader: g}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) PutExam(ctx context.Context, e Exam) error {
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
	if err := e.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO exams
		(id,title,description,teacher_id,access_key,duration_min,max_violations,
		 require_camera,auto_submit_on_violation,is_published,start_at,end_at,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
		  title=EXCLUDED.title, description=EXCLUDED.description,
		  duration_min=EXCLUDED.duration_min, max_violations=EXCLUDED.max_violations,
		  require_camera=EXCLUDED.require_camera,
		  auto_submit_on_violation=EXCLUDED.auto_submit_on_violation,
		  is_published=EXCLUDED.is_published,
		  start_at=EXCLUDED.start_at, end_at=EXCLUDED.end_at`,
		e.ID, e.Title, e.Description, e.TeacherID, e.AccessKey, e.DurationMin, e.MaxViolations,
		e.RequireCamera, e.AutoSubmitOnViolation, e.IsPublished, e.StartAt, e.EndAt, time.Now().Unix())
	if err != nil {
		return err
	}

	// Replace the question set wholesale; authoring happens pre-publish.
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE exam_id=$1`, e.ID); err != nil {
		return err
	}
	for _, q := range e.Questions {
		oj, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		cj, err := json.Marshal(q.CorrectIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions
			(id,exam_id,qtype,content,options_json,correct_json,points,order_index)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			q.ID, e.ID, q.Type, q.Content, string(oj), string(cj), q.Points, q.OrderIndex); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStore) PublishExam(ctx context.Context, examID string, publish bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE exams SET is_published=$1 WHERE id=$2`, publish, examID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := s.getExam(ctx, s.db, id)
	if err != nil {
		return Exam{}, err
	}
	return stripKeys(e), nil
}

func (s *SQLStore) GetExamAdmin(ctx context.Context, id string) (Exam, error) {
	return s.getExam(ctx, s.db, id)
}

func (s *SQLStore) GetExamByAccessKey(ctx context.Context, key string) (Exam, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM exams WHERE access_key=$1 AND is_published=$2`, key, true).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Exam{}, fmt.Errorf("access key %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return Exam{}, err
	}
	return s.GetExam(ctx, id)
}

func (s *SQLStore) getExam(ctx context.Context, q dbtx, id string) (Exam, error) {
	row := q.QueryRowContext(ctx, `SELECT id,title,description,teacher_id,access_key,
		duration_min,max_violations,require_camera,auto_submit_on_violation,is_published,
		start_at,end_at,created_at FROM exams WHERE id=$1`, id)
	var e Exam
	var startAt, endAt sql.NullInt64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.TeacherID, &e.AccessKey,
		&e.DurationMin, &e.MaxViolations, &e.RequireCamera, &e.AutoSubmitOnViolation,
		&e.IsPublished, &startAt, &endAt, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Exam{}, fmt.Errorf("exam %s: %w", id, ErrNotFound)
		}
		return Exam{}, err
	}
	if startAt.Valid {
		e.StartAt = &startAt.Int64
	}
	if endAt.Valid {
		e.EndAt = &endAt.Int64
	}

	rows, err := q.QueryContext(ctx, `SELECT id,qtype,content,options_json,correct_json,
		points,order_index FROM questions WHERE exam_id=$1 ORDER BY order_index`, id)
	if err != nil {
		return Exam{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var qu Question
		var oj, cj string
		if err := rows.Scan(&qu.ID, &qu.Type, &qu.Content, &oj, &cj, &qu.Points, &qu.OrderIndex); err != nil {
			return Exam{}, err
		}
		qu.ExamID = e.ID
		if err := json.Unmarshal([]byte(oj), &qu.Options); err != nil {
			return Exam{}, err
		}
		if err := json.Unmarshal([]byte(cj), &qu.CorrectIDs); err != nil {
			return Exam{}, err
		}
		e.Questions = append(e.Questions, qu)
	}
	return e, rows.Err()
}

func (s *SQLStore) StartOrResume(ctx context.Context, examID, studentID string, now int64) (Attempt, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	var published bool
	var startAt, endAt sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT is_published,start_at,end_at FROM exams WHERE id=$1`, examID).
		Scan(&published, &startAt, &endAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("exam %s: %w", examID, ErrNotFound)
	}
	if err != nil {
		return Attempt{}, err
	}
	if !published {
		return Attempt{}, fmt.Errorf("exam %s not published: %w", examID, ErrNotAuthorized)
	}
	e := Exam{}
	if startAt.Valid {
		e.StartAt = &startAt.Int64
	}
	if endAt.Valid {
		e.EndAt = &endAt.Int64
	}
	if !e.WindowOpen(now) {
		return Attempt{}, fmt.Errorf("exam %s outside its window: %w", examID, ErrNotAuthorized)
	}

	// The partial unique index resolves the start/start race: at most one
	// insert wins, everyone else resumes the surviving row.
	id := uuid.NewString()
	res, err := tx.ExecContext(ctx, `INSERT INTO attempts (id,exam_id,student_id,started_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (exam_id,student_id) WHERE submitted_at IS NULL DO NOTHING`,
		id, examID, studentID, now)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := appendEvent(ctx, tx, EventAttemptStarted, id,
			map[string]any{"exam_id": examID, "student_id": studentID, "started_at": now}); err != nil {
			return Attempt{}, err
		}
	}

	a, err := s.openAttempt(ctx, tx, examID, studentID)
	if err != nil {
		return Attempt{}, err
	}
	return a, tx.Commit()
}

func (s *SQLStore) openAttempt(ctx context.Context, q dbtx, examID, studentID string) (Attempt, error) {
	row := q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts
		WHERE exam_id=$1 AND student_id=$2 AND submitted_at IS NULL`, examID, studentID)
	return scanAttempt(row)
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID string, in AnswerInput) (Answer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Answer{}, err
	}
	defer tx.Rollback()

	a, err := getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return Answer{}, err
	}
	if !a.InProgress() {
		return Answer{}, fmt.Errorf("attempt %s: %w", attemptID, ErrAttemptClosed)
	}
	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM questions WHERE id=$1 AND exam_id=$2`, questionID, a.ExamID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return Answer{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return Answer{}, err
	}

	sj, err := json.Marshal(in.SelectedIDs)
	if err != nil {
		return Answer{}, err
	}
	// Upsert, last write per question wins. A rewrite clears any grading
	// state so a re-answered question never keeps a stale award.
	_, err = tx.ExecContext(ctx, `INSERT INTO answers
		(attempt_id,question_id,selected_json,essay_text,points_awarded,is_graded,updated_at)
		VALUES ($1,$2,$3,$4,NULL,$5,$6)
		ON CONFLICT (attempt_id,question_id) DO UPDATE SET
		  selected_json=EXCLUDED.selected_json, essay_text=EXCLUDED.essay_text,
		  points_awarded=NULL, is_graded=EXCLUDED.is_graded, updated_at=EXCLUDED.updated_at`,
		attemptID, questionID, string(sj), in.EssayText, false, time.Now().Unix())
	if err != nil {
		return Answer{}, err
	}
	if err := tx.Commit(); err != nil {
		return Answer{}, err
	}
	return Answer{
		AttemptID:   attemptID,
		QuestionID:  questionID,
		SelectedIDs: append([]string(nil), in.SelectedIDs...),
		EssayText:   in.EssayText,
	}, nil
}

func (s *SQLStore) Submit(ctx context.Context, attemptID, trigger string, now int64) (SubmitResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SubmitResult{}, err
	}
	defer tx.Rollback()

	a, err := getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !a.InProgress() {
		tx.Rollback()
		return s.replaySubmitted(ctx, attemptID)
	}
	e, err := s.getExam(ctx, tx, a.ExamID)
	if err != nil {
		return SubmitResult{}, err
	}

	// Claim the transition. Whoever flips submitted_at from NULL grades;
	// a raced caller sees zero rows and replays the stored result.
	submittedAt := clampSubmitTime(e, a.StartedAt, now)
	res, err := tx.ExecContext(ctx,
		`UPDATE attempts SET submitted_at=$1 WHERE id=$2 AND submitted_at IS NULL`,
		submittedAt, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		return s.replaySubmitted(ctx, attemptID)
	}
	a.SubmittedAt = &submittedAt

	answers, err := listAnswersTx(ctx, tx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	graded, err := runObjectivePass(ctx, s.grader, e.Questions, answers)
	if err != nil {
		return SubmitResult{}, err
	}
	for _, ans := range graded {
		if !ans.IsGraded {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE answers SET points_awarded=$1, is_graded=$2 WHERE attempt_id=$3 AND question_id=$4`,
			*ans.PointsAwarded, true, attemptID, ans.QuestionID); err != nil {
			return SubmitResult{}, err
		}
	}

	rep := buildReport(e, a, graded)
	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET score=$1 WHERE id=$2`, rep.Score, attemptID); err != nil {
		return SubmitResult{}, err
	}
	score := rep.Score
	rep.Attempt.Score = &score

	if err := appendEvent(ctx, tx, EventAttemptSubmitted, attemptID,
		map[string]any{"trigger": trigger, "score": rep.Score, "submitted_at": submittedAt}); err != nil {
		return SubmitResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Report: rep}, nil
}

// replaySubmitted rebuilds the result of an already-finalized attempt
// without touching any row.
func (s *SQLStore) replaySubmitted(ctx context.Context, attemptID string) (SubmitResult, error) {
	rep, err := s.report(ctx, s.db, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	return SubmitResult{Report: rep, AlreadySubmitted: true}, nil
}

func (s *SQLStore) report(ctx context.Context, q dbtx, attemptID string) (Report, error) {
	a, err := getAttemptTx(ctx, q, attemptID)
	if err != nil {
		return Report{}, err
	}
	e, err := s.getExam(ctx, q, a.ExamID)
	if err != nil {
		return Report{}, err
	}
	answers, err := listAnswersTx(ctx, q, attemptID)
	if err != nil {
		return Report{}, err
	}
	return buildReport(e, a, answers), nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	return getAttemptTx(ctx, s.db, id)
}

func (s *SQLStore) GetAttemptDetail(ctx context.Context, id string) (AttemptDetail, error) {
	rep, err := s.report(ctx, s.db, id)
	if err != nil {
		return AttemptDetail{}, err
	}
	answers, err := listAnswersTx(ctx, s.db, id)
	if err != nil {
		return AttemptDetail{}, err
	}
	viols, err := s.ListViolations(ctx, id)
	if err != nil {
		return AttemptDetail{}, err
	}
	return AttemptDetail{Report: rep, Answers: answers, Violations: viols}, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]AttemptSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+attemptCols+`,
		(SELECT COUNT(*) FROM violation_logs v WHERE v.attempt_id=attempts.id)
		FROM attempts
		WHERE ($1='' OR exam_id=$1)
		  AND ($2='' OR student_id=$2)
		  AND ($3='' OR ($3='in_progress' AND submitted_at IS NULL)
		             OR ($3='submitted' AND submitted_at IS NOT NULL))
		ORDER BY started_at DESC
		LIMIT $4 OFFSET $5`,
		opts.ExamID, opts.StudentID, opts.Status, limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AttemptSummary{}
	for rows.Next() {
		var a Attempt
		var count int
		var submittedAt sql.NullInt64
		var score sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &submittedAt, &score,
			&a.IsFlagged, &a.FlagReason, &a.IsCancelled, &a.CancelReason, &count); err != nil {
			return nil, err
		}
		if submittedAt.Valid {
			a.SubmittedAt = &submittedAt.Int64
		}
		if score.Valid {
			a.Score = &score.Float64
		}
		out = append(out, AttemptSummary{Attempt: a, ViolationCount: count})
	}
	return out, rows.Err()
}

func (s *SQLStore) AppendViolation(ctx context.Context, attemptID, vtype, detail string, now int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	a, err := getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return 0, err
	}
	if a.InProgress() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO violation_logs (attempt_id,vtype,detail,created_at) VALUES ($1,$2,$3,$4)`,
			attemptID, vtype, detail, now); err != nil {
			return 0, err
		}
	}
	// The count is always derived from the rows, inside the same
	// transaction as the append.
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violation_logs WHERE attempt_id=$1`, attemptID).Scan(&count); err != nil {
		return 0, err
	}
	return count, tx.Commit()
}

func (s *SQLStore) CountViolations(ctx context.Context, attemptID string) (int, error) {
	if _, err := getAttemptTx(ctx, s.db, attemptID); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM violation_logs WHERE attempt_id=$1`, attemptID).Scan(&count)
	return count, err
}

func (s *SQLStore) ListViolations(ctx context.Context, attemptID string) ([]ViolationLogEntry, error) {
	if _, err := getAttemptTx(ctx, s.db, attemptID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,attempt_id,vtype,detail,created_at
		FROM violation_logs WHERE attempt_id=$1 ORDER BY id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ViolationLogEntry{}
	for rows.Next() {
		var v ViolationLogEntry
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.Type, &v.Detail, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLStore) GradeEssay(ctx context.Context, attemptID, questionID string, points float64) (Report, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Report{}, err
	}
	defer tx.Rollback()

	// Serialize concurrent regrades of the same attempt so the
	// recompute-from-scratch never loses an update. SQLite writes are
	// serialized already; Postgres needs the row lock.
	if s.driver == "postgres" {
		if _, err := tx.ExecContext(ctx,
			`SELECT 1 FROM attempts WHERE id=$1 FOR UPDATE`, attemptID); err != nil {
			return Report{}, err
		}
	}

	a, err := getAttemptTx(ctx, tx, attemptID)
	if err != nil {
		return Report{}, err
	}
	if a.InProgress() {
		return Report{}, fmt.Errorf("attempt %s still in progress: %w", attemptID, ErrNotAuthorized)
	}

	var qtype string
	var qpoints float64
	err = tx.QueryRowContext(ctx, `SELECT q.qtype, q.points FROM answers a
		JOIN questions q ON q.id=a.question_id
		WHERE a.attempt_id=$1 AND a.question_id=$2`, attemptID, questionID).
		Scan(&qtype, &qpoints)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, fmt.Errorf("answer %s/%s: %w", attemptID, questionID, ErrNotFound)
	}
	if err != nil {
		return Report{}, err
	}
	if qtype != TypeEssay {
		return Report{}, fmt.Errorf("%w: question %s is not manually gradable", ErrInvalidScore, questionID)
	}
	if points < 0 || points > qpoints {
		return Report{}, fmt.Errorf("%w: %.2f not in [0, %.2f]", ErrInvalidScore, points, qpoints)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE answers SET points_awarded=$1, is_graded=$2 WHERE attempt_id=$3 AND question_id=$4`,
		points, true, attemptID, questionID); err != nil {
		return Report{}, err
	}

	// Recompute from scratch: sum over graded answers, never an
	// incremental adjustment.
	var total float64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(points_awarded),0)
		FROM answers WHERE attempt_id=$1 AND is_graded=$2`, attemptID, true).Scan(&total); err != nil {
		return Report{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE attempts SET score=$1 WHERE id=$2`, total, attemptID); err != nil {
		return Report{}, err
	}
	if err := appendEvent(ctx, tx, EventEssayGraded, attemptID,
		map[string]any{"question_id": questionID, "points": points, "score": total}); err != nil {
		return Report{}, err
	}

	rep, err := s.report(ctx, tx, attemptID)
	if err != nil {
		return Report{}, err
	}
	return rep, tx.Commit()
}

func (s *SQLStore) FlagAttempt(ctx context.Context, attemptID string, flagged bool, reason string) (Attempt, error) {
	if !flagged {
		reason = ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET is_flagged=$1, flag_reason=$2 WHERE id=$3`, flagged, reason, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) CancelAttempt(ctx context.Context, attemptID, reason string) (Attempt, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET is_cancelled=$1, cancel_reason=$2 WHERE id=$3`, true, reason, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Attempt{}, fmt.Errorf("attempt %s: %w", attemptID, ErrNotFound)
	}
	return s.GetAttempt(ctx, attemptID)
}

func (s *SQLStore) SweepOverdue(ctx context.Context, now int64) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a.id FROM attempts a
		JOIN exams e ON e.id=a.exam_id
		WHERE a.submitted_at IS NULL AND a.started_at + e.duration_min*60 <= $1`, now)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	closed := 0
	for _, id := range ids {
		res, err := s.Submit(ctx, id, TriggerTimeout, now)
		if err != nil {
			return closed, err
		}
		if !res.AlreadySubmitted {
			closed++
		}
	}
	return closed, nil
}

// scanning helpers

const attemptCols = `id,exam_id,student_id,started_at,submitted_at,score,
	is_flagged,flag_reason,is_cancelled,cancel_reason`

func getAttemptTx(ctx context.Context, q dbtx, id string) (Attempt, error) {
	row := q.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, fmt.Errorf("attempt %s: %w", id, ErrNotFound)
	}
	return a, err
}

func scanAttempt(row *sql.Row) (Attempt, error) {
	var a Attempt
	var submittedAt sql.NullInt64
	var score sql.NullFloat64
	if err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &submittedAt, &score,
		&a.IsFlagged, &a.FlagReason, &a.IsCancelled, &a.CancelReason); err != nil {
		return Attempt{}, err
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.Int64
	}
	if score.Valid {
		a.Score = &score.Float64
	}
	return a, nil
}

func listAnswersTx(ctx context.Context, q dbtx, attemptID string) ([]Answer, error) {
	rows, err := q.QueryContext(ctx, `SELECT attempt_id,question_id,selected_json,essay_text,
		points_awarded,is_graded FROM answers WHERE attempt_id=$1 ORDER BY question_id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Answer{}
	for rows.Next() {
		var a Answer
		var sj string
		var pts sql.NullFloat64
		if err := rows.Scan(&a.AttemptID, &a.QuestionID, &sj, &a.EssayText, &pts, &a.IsGraded); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sj), &a.SelectedIDs); err != nil {
			return nil, err
		}
		if pts.Valid {
			a.PointsAwarded = &pts.Float64
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
