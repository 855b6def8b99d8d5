package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Epoch is the watermark of a repository that has never been synced.
var Epoch = time.Unix(0, 0).UTC()

func checkpointKey(org, repo string) string {
	return fmt.Sprintf("last_sync_%s_%s", org, repo)
}

const getAppState = `-- name: GetAppState :one
SELECT value FROM app_state WHERE key = ?
`

// LookupCheckpoint returns the stored watermark and whether a parsable one exists.
func (q *Queries) LookupCheckpoint(ctx context.Context, org, repo string) (time.Time, bool, error) {
	var value string
	err := q.db.QueryRowContext(ctx, getAppState, checkpointKey(org, repo)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t.UTC(), true, nil
}

// GetCheckpoint returns the watermark for a repository, or Epoch when it is
// absent or unparsable.
func (q *Queries) GetCheckpoint(ctx context.Context, org, repo string) (time.Time, error) {
	t, ok, err := q.LookupCheckpoint(ctx, org, repo)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return Epoch, nil
	}
	return t, nil
}

const setAppState = `-- name: SetAppState :exec
INSERT OR REPLACE INTO app_state (key, value) VALUES (?, ?)
`

func (q *Queries) SetCheckpoint(ctx context.Context, org, repo string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, setAppState, checkpointKey(org, repo), at.UTC().Format(time.RFC3339))
	return err
}
