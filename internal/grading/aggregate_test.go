package grading

import "testing"

func TestAggregateSkipsUngraded(t *testing.T) {
	got := Aggregate([]GradedAward{
		{Points: 2, IsGraded: true},
		{Points: 3, IsGraded: false}, // pending essay
		{Points: 4, IsGraded: true},
	})
	if got != 6 {
		t.Fatalf("aggregate = %v, want 6", got)
	}
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		score, max float64
		want       int
	}{
		{5, 10, 50},
		{9, 10, 90},
		{1, 3, 33},
		{2, 3, 67},
		{0, 10, 0},
		{10, 10, 100},
		{0, 0, 0}, // zero-point exam never divides by zero
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := Percentage(tc.score, tc.max); got != tc.want {
			t.Fatalf("Percentage(%v, %v) = %d, want %d", tc.score, tc.max, got, tc.want)
		}
	}
}
