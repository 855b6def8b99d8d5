package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github-metrics/internal/model"
)

const upsertPullRequest = `-- name: UpsertPullRequest :exec
INSERT OR REPLACE INTO pull_requests (
    id, repo, number, state, author, author_association, title,
    created_at, updated_at, merged_at, closed_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertPullRequest(ctx context.Context, pr model.PullRequest) error {
	payload, err := marshalPayload(pr.Payload)
	if err != nil {
		return fmt.Errorf("marshal pull request %s#%d: %w", pr.Repo, pr.Number, err)
	}
	_, err = q.db.ExecContext(ctx, upsertPullRequest,
		pr.ID,
		pr.Repo,
		pr.Number,
		pr.State,
		pr.Author,
		pr.AuthorAssociation,
		pr.Title,
		formatTime(pr.CreatedAt),
		formatTime(pr.UpdatedAt),
		nullTime(pr.MergedAt),
		nullTime(pr.ClosedAt),
		payload,
	)
	return err
}

// A row already marked deleted keeps its state and deleted_at; the remaining
// columns are replaced.
const upsertIssue = `-- name: UpsertIssue :exec
INSERT OR REPLACE INTO issues (
    id, repo, number, state, author, title,
    created_at, updated_at, closed_at, deleted_at, payload
) VALUES (
    ?, ?, ?,
    COALESCE((SELECT state FROM issues WHERE repo = ? AND number = ? AND state = 'deleted'), ?),
    ?, ?, ?, ?, ?,
    (SELECT deleted_at FROM issues WHERE repo = ? AND number = ? AND state = 'deleted'),
    ?
)
`

func (q *Queries) UpsertIssue(ctx context.Context, issue model.Issue) error {
	payload, err := marshalPayload(issue.Payload)
	if err != nil {
		return fmt.Errorf("marshal issue %s#%d: %w", issue.Repo, issue.Number, err)
	}
	_, err = q.db.ExecContext(ctx, upsertIssue,
		issue.ID,
		issue.Repo,
		issue.Number,
		issue.Repo, issue.Number, issue.State,
		issue.Author,
		issue.Title,
		formatTime(issue.CreatedAt),
		formatTime(issue.UpdatedAt),
		nullTime(issue.ClosedAt),
		issue.Repo, issue.Number,
		payload,
	)
	return err
}

const upsertIssueComment = `-- name: UpsertIssueComment :exec
INSERT OR REPLACE INTO issue_comments (
    id, repo, issue_number, author, created_at, updated_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertIssueComment(ctx context.Context, c model.IssueComment) error {
	payload, err := marshalPayload(c.Payload)
	if err != nil {
		return fmt.Errorf("marshal issue comment %d: %w", c.ID, err)
	}
	_, err = q.db.ExecContext(ctx, upsertIssueComment,
		c.ID,
		c.Repo,
		c.IssueNumber,
		c.Author,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
		payload,
	)
	return err
}

const upsertReviewComment = `-- name: UpsertReviewComment :exec
INSERT OR REPLACE INTO pr_review_comments (
    id, repo, pr_number, author, created_at, updated_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertReviewComment(ctx context.Context, c model.ReviewComment) error {
	payload, err := marshalPayload(c.Payload)
	if err != nil {
		return fmt.Errorf("marshal review comment %d: %w", c.ID, err)
	}
	_, err = q.db.ExecContext(ctx, upsertReviewComment,
		c.ID,
		c.Repo,
		c.PRNumber,
		c.Author,
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
		payload,
	)
	return err
}

const upsertReview = `-- name: UpsertReview :exec
INSERT OR REPLACE INTO pr_reviews (
    id, repo, pr_number, state, author, submitted_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertReview(ctx context.Context, r model.Review) error {
	payload, err := marshalPayload(r.Payload)
	if err != nil {
		return fmt.Errorf("marshal review %d: %w", r.ID, err)
	}
	_, err = q.db.ExecContext(ctx, upsertReview,
		r.ID,
		r.Repo,
		r.PRNumber,
		r.State,
		r.Author,
		formatTime(r.SubmittedAt),
		payload,
	)
	return err
}

const upsertStargazer = `-- name: UpsertStargazer :exec
INSERT OR REPLACE INTO stargazers (repo, user, starred_at) VALUES (?, ?, ?)
`

func (q *Queries) UpsertStargazer(ctx context.Context, s model.Stargazer) error {
	_, err := q.db.ExecContext(ctx, upsertStargazer, s.Repo, s.User, formatTime(s.StarredAt))
	return err
}

const listStargazerUsers = `-- name: ListStargazerUsers :many
SELECT user FROM stargazers WHERE repo = ? ORDER BY user
`

func (q *Queries) ListStargazerUsers(ctx context.Context, repo string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listStargazerUsers, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const deleteStargazer = `-- name: DeleteStargazer :exec
DELETE FROM stargazers WHERE repo = ? AND user = ?
`

func (q *Queries) DeleteStargazer(ctx context.Context, repo, user string) error {
	_, err := q.db.ExecContext(ctx, deleteStargazer, repo, user)
	return err
}

const upsertCommit = `-- name: UpsertCommit :exec
INSERT OR REPLACE INTO commits (
    sha, repo, author, date, additions, deletions, message
) VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertCommit(ctx context.Context, c model.Commit) error {
	_, err := q.db.ExecContext(ctx, upsertCommit,
		c.SHA,
		c.Repo,
		c.Author,
		formatTime(c.CommitDate),
		c.Additions,
		c.Deletions,
		c.Message,
	)
	return err
}

const commitExists = `-- name: CommitExists :one
SELECT 1 FROM commits WHERE sha = ?
`

func (q *Queries) CommitExists(ctx context.Context, sha string) (bool, error) {
	var one int
	err := q.db.QueryRowContext(ctx, commitExists, sha).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

const upsertWorkflowRun = `-- name: UpsertWorkflowRun :exec
INSERT OR REPLACE INTO workflow_runs (
    id, repo, name, head_branch, conclusion, created_at, updated_at, duration_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) UpsertWorkflowRun(ctx context.Context, r model.WorkflowRun) error {
	_, err := q.db.ExecContext(ctx, upsertWorkflowRun,
		r.ID,
		r.Repo,
		r.Name,
		r.HeadBranch,
		r.Conclusion,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
		r.DurationMS,
	)
	return err
}
