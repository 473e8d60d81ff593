// Package proctor turns raw proctoring signals (tab switches, window
// blur, camera loss) into durable violation log entries and enforces the
// exam's auto-submit policy.
package proctor

import (
	"context"
	"fmt"

	"github.com/examhall/examhall/internal/exam"
)

var validTypes = map[string]struct{}{
	exam.ViolationTabSwitch:    {},
	exam.ViolationWindowBlur:   {},
	exam.ViolationCameraOff:    {},
	exam.ViolationCameraDenied: {},
	exam.ViolationMinimize:     {},
}

type Tracker struct {
	store exam.Store
}

func NewTracker(store exam.Store) *Tracker {
	return &Tracker{store: store}
}

// LogResult tells the caller where the attempt stands after the signal.
type LogResult struct {
	Count         int  `json:"count"`
	MaxViolations int  `json:"max_violations"`
	AutoSubmitted bool `json:"auto_submitted"`
}

// Log appends one violation and applies the threshold policy. Signals
// arriving after submission are discarded without error: proctoring
// events racing a submit are expected. When the derived count first
// reaches max_violations the attempt is force-submitted; the submit is
// idempotent, so a second signal crossing the line is harmless.
func (t *Tracker) Log(ctx context.Context, attemptID, vtype, detail string, now int64) (LogResult, error) {
	if _, ok := validTypes[vtype]; !ok {
		return LogResult{}, fmt.Errorf("unknown violation type %q", vtype)
	}

	a, err := t.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return LogResult{}, err
	}
	e, err := t.store.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return LogResult{}, err
	}

	count, err := t.store.AppendViolation(ctx, attemptID, vtype, detail, now)
	if err != nil {
		return LogResult{}, err
	}
	res := LogResult{Count: count, MaxViolations: e.MaxViolations}

	if !a.InProgress() {
		return res, nil
	}
	if e.AutoSubmitOnViolation && count >= e.MaxViolations {
		sub, err := t.store.Submit(ctx, attemptID, exam.TriggerViolation, now)
		if err != nil {
			return res, err
		}
		res.AutoSubmitted = !sub.AlreadySubmitted
	}
	return res, nil
}
