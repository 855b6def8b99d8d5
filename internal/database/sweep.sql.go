package database

import (
	"context"
	"time"

	"github-metrics/internal/model"
)

const listOpenIssueNumbers = `-- name: ListOpenIssueNumbers :many
SELECT number FROM issues
WHERE repo = ? AND state = 'open' AND closed_at IS NULL AND deleted_at IS NULL
ORDER BY number
`

func (q *Queries) ListOpenIssueNumbers(ctx context.Context, repo string) ([]int, error) {
	rows, err := q.db.QueryContext(ctx, listOpenIssueNumbers, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

const updateIssueState = `-- name: UpdateIssueState :exec
UPDATE issues SET state = ?, closed_at = ?
WHERE repo = ? AND number = ? AND state <> 'deleted'
`

// UpdateIssueState never touches an issue that has been marked deleted.
func (q *Queries) UpdateIssueState(ctx context.Context, repo string, number int, state string, closedAt *time.Time) error {
	_, err := q.db.ExecContext(ctx, updateIssueState, state, nullTime(closedAt), repo, number)
	return err
}

const markIssueDeleted = `-- name: MarkIssueDeleted :exec
UPDATE issues SET state = ?, deleted_at = ?
WHERE repo = ? AND number = ? AND state <> ?
`

func (q *Queries) MarkIssueDeleted(ctx context.Context, repo string, number int, at time.Time) error {
	_, err := q.db.ExecContext(ctx, markIssueDeleted,
		model.StateDeleted, formatTime(at), repo, number, model.StateDeleted)
	return err
}
