package grading

import "math"

// GradedAward is one answer's contribution to the aggregate.
type GradedAward struct {
	Points   float64
	IsGraded bool
}

// Aggregate recomputes an attempt score from scratch: the sum of awarded
// points over graded answers only. Recomputing instead of incrementing
// keeps repeated or re-ordered manual grading idempotent and makes grade
// corrections safe.
func Aggregate(awards []GradedAward) float64 {
	total := 0.0
	for _, a := range awards {
		if a.IsGraded {
			total += a.Points
		}
	}
	return total
}

// Percentage reports round(100*score/max), with 0 for empty or
// zero-point exams.
func Percentage(score, max float64) int {
	if max <= 0 {
		return 0
	}
	return int(math.Round(100 * score / max))
}
