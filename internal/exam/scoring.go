package exam

import (
	"context"

	"github.com/examhall/examhall/internal/grading"
)

// runObjectivePass grades every recorded choice answer against the answer
// key and returns the updated answer set. Essay answers are left ungraded;
// questions without an answer row contribute nothing. Called exactly once,
// inside the submission unit of work.
func runObjectivePass(ctx context.Context, g grading.Grader, questions []Question, answers []Answer) ([]Answer, error) {
	byQuestion := make(map[string]Question, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = q
	}
	out := make([]Answer, len(answers))
	for i, a := range answers {
		out[i] = a
		q, ok := byQuestion[a.QuestionID]
		if !ok || q.Type == TypeEssay {
			continue
		}
		res, err := g.Grade(ctx, grading.Q{Type: q.Type, Points: q.Points, CorrectIDs: q.CorrectIDs}, a.SelectedIDs)
		if err != nil {
			return nil, err
		}
		pts := res.AutoPoints
		out[i].PointsAwarded = &pts
		out[i].IsGraded = true
	}
	return out, nil
}

// buildReport derives the scored view of an attempt from its answer set.
func buildReport(e Exam, a Attempt, answers []Answer) Report {
	awards := make([]grading.GradedAward, 0, len(answers))
	fully := true
	for _, ans := range answers {
		pts := 0.0
		if ans.PointsAwarded != nil {
			pts = *ans.PointsAwarded
		}
		awards = append(awards, grading.GradedAward{Points: pts, IsGraded: ans.IsGraded})
		if !ans.IsGraded {
			fully = false
		}
	}
	score := grading.Aggregate(awards)
	max := e.MaxScore()
	return Report{
		Attempt:     a,
		Score:       score,
		MaxScore:    max,
		Percentage:  grading.Percentage(score, max),
		FullyGraded: fully,
	}
}

// clampSubmitTime caps a late submission at the exam deadline so an
// overdue attempt finalized by the sweeper records the time it should
// have closed, not the time we noticed.
func clampSubmitTime(e Exam, startedAt, now int64) int64 {
	if dl := e.DeadlineFor(startedAt); now > dl {
		return dl
	}
	return now
}
