package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Lifecycle audit events. Appended inside the same transaction as the
// state change they describe, so the log never records a transition that
// did not commit.
const (
	EventAttemptStarted   = "AttemptStarted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventEssayGraded      = "EssayGraded"
)

func appendEvent(ctx context.Context, ex execer, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(buf), time.Now().Unix())
	return err
}
